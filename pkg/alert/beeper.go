package alert

import (
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Beeper plays the audible alert cue.
type Beeper interface {
	Beep() error
}

// ToneBeeper synthesizes short sine bursts on the default audio
// output. Each Beep initializes and releases the audio backend so
// the device is only held while sound actually plays.
type ToneBeeper struct {
	Freq  float64       // tone frequency in Hz
	Burst time.Duration // length of one burst
	Gap   time.Duration // silence between bursts
	Count int           // number of bursts
}

// NewToneBeeper returns the default three-burst alert tone.
func NewToneBeeper() *ToneBeeper {
	return &ToneBeeper{
		Freq:  880,
		Burst: 300 * time.Millisecond,
		Gap:   150 * time.Millisecond,
		Count: 3,
	}
}

const (
	beepSampleRate = 44100
	beepFrames     = 1024
	beepVolume     = 0.3
)

// Beep plays the configured burst sequence. Blocks until playback
// finishes; callers wanting fire-and-forget run it in a goroutine.
func (b *ToneBeeper) Beep() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	buf := make([]float32, beepFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, beepSampleRate, beepFrames, &buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for i := 0; i < b.Count; i++ {
		if i > 0 {
			time.Sleep(b.Gap)
		}
		if err := b.writeBurst(stream, buf); err != nil {
			return err
		}
	}
	return nil
}

func (b *ToneBeeper) writeBurst(stream *portaudio.Stream, buf []float32) error {
	total := int(beepSampleRate * b.Burst.Seconds())
	step := 2 * math.Pi * b.Freq / beepSampleRate

	phase := 0.0
	for written := 0; written < total; written += len(buf) {
		for i := range buf {
			buf[i] = float32(beepVolume * math.Sin(phase))
			phase += step
		}
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
