package sega

import "math"

const (
	slotCount     = 32
	slotStride    = 0x20
	registerWords = 0x1000 / 2

	regMasterVolume = 0x400
	regTimerA       = 0x418
	regTimerB       = 0x41A
	regTimerC       = 0x41C
	regIntEnable    = 0x41E
	regIntPending   = 0x420
	regIntReset     = 0x422
	regIntLevel0    = 0x424
	regIntLevel1    = 0x426
	regIntLevel2    = 0x428

	keyOnExecute = 1 << 12
	keyOnBit     = 1 << 11

	intTimerA = 6
	intTimerB = 7
	intTimerC = 8
	intSample = 10
)

// slot word offsets
const (
	slotControl   = 0x00 // KYONEX KYONB SBCTL SSCTL LPCTL PCM8B SA[19:16]
	slotStartLow  = 0x02 // SA[15:0]
	slotLoopStart = 0x04 // LSA
	slotLoopEnd   = 0x06 // LEA
	slotLevel     = 0x0C // STWINH SDIR TL
	slotPitch     = 0x10 // OCT FNS
	slotMix       = 0x16 // DISDL DIPAN EFSDL EFPAN
)

// attenuation tables, filled once
var (
	totalLevelGain [256]float64
	panGain        [16]float64
	sendGain       [8]float64
)

func init() {
	for i := range totalLevelGain {
		totalLevelGain[i] = math.Pow(10, -float64(i)*0.375/20)
	}
	for i := range panGain {
		if i == 15 {
			continue
		}
		panGain[i] = math.Pow(10, -float64(i)*3/20)
	}
	for i := 1; i < len(sendGain); i++ {
		sendGain[i] = math.Pow(2, -float64(7-i))
	}
}

type voice struct {
	active bool
	pos    float64 // in samples relative to SA
}

type timer struct {
	register uint32
	bit      int
	counter  uint16
	ticks    int
}

// scsp is a reduced model of the Saturn Custom Sound Processor. It plays
// the PCM slots with pitch, loop, level and pan and runs the three timers
// with the interrupt routing. Envelope generator, LFO, FM and the effect
// DSP are not modelled.
type scsp struct {
	ram    []byte
	regs   [registerWords]uint16
	voices [slotCount]voice
	timers [3]timer
}

func newSCSP(ram []byte) *scsp {
	c := &scsp{ram: ram}
	c.reset()
	return c
}

func (c *scsp) reset() {
	c.regs = [registerWords]uint16{}
	c.voices = [slotCount]voice{}
	c.timers = [3]timer{
		{register: regTimerA, bit: intTimerA},
		{register: regTimerB, bit: intTimerB},
		{register: regTimerC, bit: intTimerC},
	}
}

func (c *scsp) reg(offset uint32) uint16 {
	return c.regs[(offset>>1)%registerWords]
}

func (c *scsp) read(offset uint32) uint16 {
	for i := range c.timers {
		if c.timers[i].register == offset {
			return c.reg(offset)&0xFF00 | c.timers[i].counter
		}
	}
	return c.reg(offset)
}

func (c *scsp) write(offset uint32, value, mask uint16) {
	idx := (offset >> 1) % registerWords
	old := c.regs[idx]

	switch offset {
	case regIntPending:
		return
	case regIntReset:
		c.regs[regIntPending>>1] &^= value & mask
		return
	}

	c.regs[idx] = old&^mask | value&mask

	for i := range c.timers {
		if c.timers[i].register == offset && mask&0x00FF != 0 {
			c.timers[i].counter = value & 0xFF
			c.timers[i].ticks = 0
		}
	}

	if offset < slotCount*slotStride && offset%slotStride == slotControl && c.regs[idx]&keyOnExecute != 0 {
		c.regs[idx] &^= keyOnExecute
		c.executeKeyOn()
	}
}

// executeKeyOn applies the KYONB bit of every slot.
func (c *scsp) executeKeyOn() {
	for i := range c.voices {
		on := c.reg(uint32(i*slotStride)+slotControl)&keyOnBit != 0
		v := &c.voices[i]
		switch {
		case on && !v.active:
			v.active = true
			v.pos = 0
		case !on:
			v.active = false
		}
	}
}

// sample advances all slots and timers by one output sample and returns the
// stereo mix.
func (c *scsp) sample(dry bool) (int16, int16) {
	var left, right float64

	for i := range c.voices {
		v := &c.voices[i]
		if !v.active {
			continue
		}
		l, r := c.renderSlot(uint32(i*slotStride), v)
		left += l
		right += r
	}

	c.tickTimers()

	if !dry {
		return 0, 0
	}

	volume := c.reg(regMasterVolume) & 0xF
	if volume == 0 {
		return 0, 0
	}
	gain := math.Pow(10, -float64(15-volume)*3/20)
	return clamp16(left * gain), clamp16(right * gain)
}

func (c *scsp) renderSlot(base uint32, v *voice) (float64, float64) {
	control := c.reg(base + slotControl)
	start := uint32(control&0xF)<<16 | uint32(c.reg(base+slotStartLow))
	loopStart := float64(c.reg(base + slotLoopStart))
	loopEnd := float64(c.reg(base + slotLoopEnd))
	pcm8 := control&0x10 != 0
	looping := (control>>5)&3 != 0

	var value float64
	if pcm8 {
		value = float64(int8(c.ram[(start+uint32(v.pos))&soundRAMMask])) * 256
	} else {
		addr := (start + uint32(v.pos)*2) & soundRAMMask
		value = float64(int16(uint16(c.ram[addr])<<8 | uint16(c.ram[(addr+1)&soundRAMMask])))
	}

	v.pos += c.step(base)
	if v.pos >= loopEnd {
		if !looping || loopEnd <= loopStart {
			v.active = false
		} else {
			v.pos = loopStart + math.Mod(v.pos-loopEnd, loopEnd-loopStart)
		}
	}

	mix := c.reg(base + slotMix)
	send := sendGain[(mix>>13)&7]
	if send == 0 {
		return 0, 0
	}
	value *= totalLevelGain[c.reg(base+slotLevel)&0xFF] * send

	pan := (mix >> 8) & 0x1F
	attenuation := panGain[pan&0xF]
	if pan&0x10 != 0 {
		return value * attenuation, value
	}
	return value, value * attenuation
}

// step returns the sample increment per output sample from OCT and FNS.
func (c *scsp) step(base uint32) float64 {
	pitch := c.reg(base + slotPitch)
	octave := int(int8(byte(pitch>>11)&0xF<<4) >> 4)
	fns := float64(pitch & 0x3FF)
	return (1 + fns/1024) * math.Pow(2, float64(octave))
}

func (c *scsp) tickTimers() {
	pending := &c.regs[regIntPending>>1]
	*pending |= 1 << intSample

	for i := range c.timers {
		t := &c.timers[i]
		prescale := 1 << ((c.reg(t.register) >> 8) & 7)
		t.ticks++
		if t.ticks < prescale {
			continue
		}
		t.ticks = 0
		t.counter++
		if t.counter > 0xFF {
			t.counter = 0
			*pending |= 1 << t.bit
		}
	}
}

// interruptLevel returns the highest 68000 interrupt level of all enabled
// and pending sources.
func (c *scsp) interruptLevel() uint8 {
	active := c.reg(regIntEnable) & c.reg(regIntPending)
	if active == 0 {
		return 0
	}

	lv0 := c.reg(regIntLevel0)
	lv1 := c.reg(regIntLevel1)
	lv2 := c.reg(regIntLevel2)

	var level uint8
	for bit := range 11 {
		if active&(1<<bit) == 0 {
			continue
		}
		idx := min(bit, 7)
		l := uint8((lv0>>idx)&1 | ((lv1>>idx)&1)<<1 | ((lv2>>idx)&1)<<2)
		level = max(level, l)
	}
	return level
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
