// Package filters builds the audio filter payloads accepted by the node's
// filters command: equalizer bands, karaoke, timescale, tremolo, and vibrato.
// Builders validate their value ranges up front so an out-of-range payload
// never reaches the node.
package filters

import "fmt"

// equalizer band limits defined by the node.
const (
	minBand = 0
	maxBand = 14
	minGain = -0.25
	maxGain = 1.0
)

// Band is a single equalizer band adjustment.
type Band struct {
	// Band is the band index, 0-14.
	Band int `json:"band"`

	// Gain is the gain multiplier, -0.25 (muted) to 1.0.
	Gain float64 `json:"gain"`
}

// Equalizer is a full 15-band equalizer payload. Bands not given to
// [NewEqualizer] default to zero gain.
type Equalizer struct {
	bands [maxBand + 1]float64
}

// NewEqualizer builds an Equalizer from the given band adjustments. It
// returns an error if any band index or gain is out of range.
func NewEqualizer(bands ...Band) (*Equalizer, error) {
	eq := &Equalizer{}
	for _, b := range bands {
		if b.Band < minBand || b.Band > maxBand {
			return nil, fmt.Errorf("filters: band %d out of range [%d, %d]", b.Band, minBand, maxBand)
		}
		if b.Gain < minGain || b.Gain > maxGain {
			return nil, fmt.Errorf("filters: gain %g out of range [%g, %g]", b.Gain, minGain, maxGain)
		}
		eq.bands[b.Band] = b.Gain
	}
	return eq, nil
}

// Flat returns an equalizer with all bands at zero gain.
func Flat() *Equalizer {
	return &Equalizer{}
}

// Payload returns the wire representation: one entry per band, 0 through 14.
func (e *Equalizer) Payload() []Band {
	out := make([]Band, 0, len(e.bands))
	for i, gain := range e.bands {
		out = append(out, Band{Band: i, Gain: gain})
	}
	return out
}

// Karaoke is a vocal-suppression filter.
type Karaoke struct {
	Level       float64 `json:"level"`
	MonoLevel   float64 `json:"monoLevel"`
	FilterBand  float64 `json:"filterBand"`
	FilterWidth float64 `json:"filterWidth"`
}

// NewKaraoke returns a Karaoke filter with the node's default parameters.
func NewKaraoke() Karaoke {
	return Karaoke{Level: 1.0, MonoLevel: 1.0, FilterBand: 220.0, FilterWidth: 100.0}
}

// Timescale adjusts playback speed, pitch, and rate.
type Timescale struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

// NewTimescale validates and builds a Timescale filter. All three values
// must be positive.
func NewTimescale(speed, pitch, rate float64) (Timescale, error) {
	if speed <= 0 || pitch <= 0 || rate <= 0 {
		return Timescale{}, fmt.Errorf("filters: timescale values must be positive, got speed=%g pitch=%g rate=%g", speed, pitch, rate)
	}
	return Timescale{Speed: speed, Pitch: pitch, Rate: rate}, nil
}

// Tremolo oscillates the volume.
type Tremolo struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// NewTremolo validates and builds a Tremolo filter. Frequency must be
// positive; depth must be in (0, 1].
func NewTremolo(frequency, depth float64) (Tremolo, error) {
	if frequency <= 0 {
		return Tremolo{}, fmt.Errorf("filters: tremolo frequency must be positive, got %g", frequency)
	}
	if depth <= 0 || depth > 1 {
		return Tremolo{}, fmt.Errorf("filters: tremolo depth must be in (0, 1], got %g", depth)
	}
	return Tremolo{Frequency: frequency, Depth: depth}, nil
}

// Vibrato oscillates the pitch.
type Vibrato struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

// NewVibrato validates and builds a Vibrato filter. Frequency must be in
// (0, 14]; depth must be in (0, 1].
func NewVibrato(frequency, depth float64) (Vibrato, error) {
	if frequency <= 0 || frequency > 14 {
		return Vibrato{}, fmt.Errorf("filters: vibrato frequency must be in (0, 14], got %g", frequency)
	}
	if depth <= 0 || depth > 1 {
		return Vibrato{}, fmt.Errorf("filters: vibrato depth must be in (0, 1], got %g", depth)
	}
	return Vibrato{Frequency: frequency, Depth: depth}, nil
}

// Filter is the combined payload sent with a filters command. Nil fields are
// omitted from the payload entirely so the node keeps its current value for
// that filter.
type Filter struct {
	Volume    *float64
	Equalizer *Equalizer
	Karaoke   *Karaoke
	Timescale *Timescale
	Tremolo   *Tremolo
	Vibrato   *Vibrato
}

// Payload returns the map merged into the filters command frame.
func (f Filter) Payload() map[string]any {
	payload := make(map[string]any)
	if f.Volume != nil {
		payload["volume"] = *f.Volume
	}
	if f.Equalizer != nil {
		payload["equalizer"] = f.Equalizer.Payload()
	}
	if f.Karaoke != nil {
		payload["karaoke"] = *f.Karaoke
	}
	if f.Timescale != nil {
		payload["timescale"] = *f.Timescale
	}
	if f.Tremolo != nil {
		payload["tremolo"] = *f.Tremolo
	}
	if f.Vibrato != nil {
		payload["vibrato"] = *f.Vibrato
	}
	return payload
}
