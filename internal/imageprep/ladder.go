package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"cardflow/internal/logging"
	"cardflow/internal/services"
)

// ErrTooLarge reports that no rung of the ladder brought the payload under
// the ceiling. Errors returned by Fit wrap it together with
// services.ErrTransient.
var ErrTooLarge = errors.New("image exceeds size ceiling")

// Rung is one re-encode attempt. MaxDim of zero keeps the original
// dimensions; otherwise the image is fit inside a MaxDim x MaxDim box.
type Rung struct {
	MaxDim  int
	Quality int
}

func (r Rung) String() string {
	if r.MaxDim <= 0 {
		return fmt.Sprintf("reencode q%d", r.Quality)
	}
	return fmt.Sprintf("fit %dx%d q%d", r.MaxDim, r.MaxDim, r.Quality)
}

// DefaultLadder is tried in order until a result fits.
var DefaultLadder = []Rung{
	{MaxDim: 0, Quality: 95},
	{MaxDim: 2200, Quality: 85},
	{MaxDim: 1800, Quality: 80},
	{MaxDim: 1400, Quality: 75},
}

// Preparer shrinks image payloads to fit provider byte ceilings.
type Preparer struct {
	ladder []Rung
	logger *slog.Logger
}

// New returns a Preparer using DefaultLadder.
func New(logger *slog.Logger) *Preparer {
	return NewWithLadder(DefaultLadder, logger)
}

// NewWithLadder returns a Preparer with a custom ladder.
func NewWithLadder(ladder []Rung, logger *slog.Logger) *Preparer {
	rungs := make([]Rung, len(ladder))
	copy(rungs, ladder)
	return &Preparer{ladder: rungs, logger: logging.NewComponentLogger(logger, "imageprep")}
}

// Fit returns data unchanged when it is within maxBytes. Otherwise it walks
// the ladder and returns the first JPEG re-encode within maxBytes. It never
// returns a payload over the ceiling; exhaustion yields ErrTooLarge.
func (p *Preparer) Fit(data []byte, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 || len(data) <= maxBytes {
		return data, nil
	}

	img, decodeErr := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	var lastErr error
	for i, rung := range p.ladder {
		if decodeErr != nil {
			lastErr = decodeErr
			break
		}
		out, err := encode(img, rung)
		if err != nil {
			lastErr = err
			p.logger.Warn("image re-encode failed; trying next rung",
				logging.Int("rung", i+1),
				logging.String("strategy", rung.String()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "image_rung_failed"),
				logging.String(logging.FieldErrorHint, "source image may be corrupt"),
				logging.String(logging.FieldImpact, "next ladder rung will be attempted"),
			)
			continue
		}
		if len(out) <= maxBytes {
			p.logger.Debug("image reduced",
				logging.Int("rung", i+1),
				logging.String("strategy", rung.String()),
				logging.Int("original_bytes", len(data)),
				logging.Int("bytes", len(out)),
				logging.Int("max_bytes", maxBytes),
			)
			return out, nil
		}
		p.logger.Debug("image still over ceiling",
			logging.Int("rung", i+1),
			logging.String("strategy", rung.String()),
			logging.Int("bytes", len(out)),
			logging.Int("max_bytes", maxBytes),
		)
	}

	message := fmt.Sprintf("image of %d bytes could not be reduced below %d bytes", len(data), maxBytes)
	cause := ErrTooLarge
	if lastErr != nil {
		cause = fmt.Errorf("%w: %w", ErrTooLarge, lastErr)
	}
	p.logger.Warn("image size ladder exhausted",
		logging.Int("original_bytes", len(data)),
		logging.Int("max_bytes", maxBytes),
		logging.String(logging.FieldEventType, "image_too_large"),
		logging.String(logging.FieldErrorHint, "upload a smaller photo or raise max_image_bytes"),
		logging.String(logging.FieldImpact, "provider call skipped"),
	)
	return nil, services.Wrap(services.ErrTransient, "imageprep", "fit", message, cause)
}

func encode(img image.Image, rung Rung) ([]byte, error) {
	if rung.MaxDim > 0 {
		img = imaging.Fit(img, rung.MaxDim, rung.MaxDim, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(rung.Quality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rung, err)
	}
	return buf.Bytes(), nil
}

// Thumbnail decodes data and returns a JPEG fit inside maxDim x maxDim.
func Thumbnail(data []byte, maxDim int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if maxDim <= 0 {
		maxDim = 400
	}
	return encode(img, Rung{MaxDim: maxDim, Quality: 85})
}
