// Package search identifies plants from a photo by chaining the prediction
// service with the catalog lookup.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

var (
	// ErrSearchFailed wraps any failure of the chain. No partial results are returned.
	ErrSearchFailed = errors.New("image search failed")
	// ErrSearchInProgress is returned when the session already has a search running
	ErrSearchInProgress = errors.New("image search already in progress")
)

// Predictor identifies an image
type Predictor interface {
	Predict(ctx context.Context, filename, contentType string, data []byte) ([]models.Prediction, error)
}

// Finder resolves scientific names to catalog records
type Finder interface {
	FindByNames(ctx context.Context, names []string) ([]models.PlantDetail, error)
}

// Upload is the image submitted by the user
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Searcher runs image searches, one at a time per session
type Searcher struct {
	predictor Predictor
	finder    Finder

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSearcher creates a searcher
func NewSearcher(p Predictor, f Finder) *Searcher {
	return &Searcher{predictor: p, finder: f, inFlight: make(map[string]struct{})}
}

// Search validates the upload, predicts, looks the names up and returns the
// known plants ordered by descending confidence. session scopes the
// one-search-at-a-time guard; an empty session disables it.
func (s *Searcher) Search(ctx context.Context, session string, up Upload) ([]models.PlantPrediction, error) {
	if session != "" {
		s.mu.Lock()
		if _, busy := s.inFlight[session]; busy {
			s.mu.Unlock()
			return nil, ErrSearchInProgress
		}
		s.inFlight[session] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, session)
			s.mu.Unlock()
		}()
	}

	if err := validate(up); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	predictions, err := s.predictor.Predict(ctx, up.Filename, up.ContentType, up.Data)
	if err != nil {
		log.Error().Err(err).Str("filename", up.Filename).Msg("Prediction failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if len(predictions) == 0 {
		return []models.PlantPrediction{}, nil
	}

	names := make([]string, 0, len(predictions))
	for _, p := range predictions {
		names = append(names, p.Name)
	}

	plants, err := s.finder.FindByNames(ctx, names)
	if err != nil {
		log.Error().Err(err).Strs("names", names).Msg("Catalog lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	return Rank(predictions, plants), nil
}

// Rank joins predictions with plants on scientific name, drops names the
// catalog does not know and sorts by descending confidence. A name predicted
// more than once keeps its highest confidence. Ties keep prediction order.
func Rank(predictions []models.Prediction, plants []models.PlantDetail) []models.PlantPrediction {
	byName := make(map[string]models.PlantDetail, len(plants))
	for _, p := range plants {
		byName[normalize(p.ScientificName)] = p
	}

	out := make([]models.PlantPrediction, 0, len(predictions))
	index := make(map[string]int, len(predictions))
	for _, pred := range predictions {
		key := normalize(pred.Name)
		plant, ok := byName[key]
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			if pred.Confidence > out[i].Confidence {
				out[i].Confidence = pred.Confidence
			}
			continue
		}
		index[key] = len(out)
		out = append(out, models.PlantPrediction{Plant: plant, Confidence: pred.Confidence})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func validate(up Upload) error {
	if len(up.Data) == 0 {
		return errors.New("image is empty")
	}
	if err := wizard.ValidateImageFile(up.ContentType, len(up.Data)); err != nil {
		return err
	}
	if sniffed := http.DetectContentType(up.Data); !strings.HasPrefix(sniffed, "image/") {
		return fmt.Errorf("%w: detected %s", wizard.ErrNotAnImage, sniffed)
	}
	return nil
}
