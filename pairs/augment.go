package pairs

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
)

// Augmenter randomly flips clip pairs for data augmentation. The same transform
// is always applied to both clips of a pair, so the time-distance label stays
// meaningful.
type Augmenter struct {
	flipH, flipV bool
	rng          *rand.Rand
}

// NewAugmenter creates an Augmenter with the given random transforms enabled.
func NewAugmenter(flipH, flipV bool, seed int64) *Augmenter {
	return &Augmenter{
		flipH: flipH,
		flipV: flipV,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Apply returns the (possibly transformed) clips. The inputs are raw uint8
// frames, frame-major; the returned slices are freshly allocated when any
// transform fires, otherwise the inputs are returned unchanged.
func (a *Augmenter) Apply(clipA, clipB []uint8, numFrames, height, width int) ([]uint8, []uint8) {
	doFlipH := a.flipH && a.rng.Intn(2) == 1
	doFlipV := a.flipV && a.rng.Intn(2) == 1
	if !doFlipH && !doFlipV {
		return clipA, clipB
	}
	return a.transformClip(clipA, numFrames, height, width, doFlipH, doFlipV),
		a.transformClip(clipB, numFrames, height, width, doFlipH, doFlipV)
}

func (a *Augmenter) transformClip(clip []uint8, numFrames, height, width int, flipH, flipV bool) []uint8 {
	out := make([]uint8, len(clip))
	frameBytes := height * width
	for f := 0; f < numFrames; f++ {
		frame := clip[f*frameBytes : (f+1)*frameBytes]
		img := &image.Gray{
			Pix:    frame,
			Stride: width,
			Rect:   image.Rect(0, 0, width, height),
		}
		var flipped *image.NRGBA
		if flipH {
			flipped = imaging.FlipH(img)
		}
		if flipV {
			if flipped != nil {
				flipped = imaging.FlipV(flipped)
			} else {
				flipped = imaging.FlipV(img)
			}
		}
		dst := out[f*frameBytes : (f+1)*frameBytes]
		for p := 0; p < frameBytes; p++ {
			dst[p] = flipped.Pix[p*4] // Grayscale: take the red channel.
		}
	}
	return out
}
