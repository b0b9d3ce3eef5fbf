package pipeline

import (
	"errors"

	"wikiflow/internal/metrics"
	"wikiflow/internal/model"

	"go.uber.org/zap"
)

// Pipeline runs one raw payload through every transformation stage. It holds
// no cross-record state, so a single Pipeline is safe to share across
// concurrent workers.
type Pipeline struct {
	logger *zap.Logger
	m      *metrics.Metrics
}

func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger, m: metrics.GlobalMetrics}
}

// Process transforms a raw bus payload into an output row. A nil row with a
// nil error means the record was filtered cleanly (non-edit or canary); a
// non-nil error reports why the record was dropped. Errors are terminal for
// the record only, never for the pipeline.
func (p *Pipeline) Process(raw []byte) (*model.OutputRow, error) {
	evt, err := Decode(raw)
	if err != nil {
		p.m.DecodeErrors.Inc()
		p.logger.Debug("dropping undecodable payload", zap.Error(err))
		return nil, err
	}
	// Canary probes are filtered by the bridge, but the bus accepts
	// publishes from anyone; keep the guard here too.
	if evt.IsCanary() {
		p.m.CanaryDropped.Inc()
		return nil, nil
	}
	if !IsEdit(evt) {
		p.m.FilteredByType.Inc()
		return nil, nil
	}

	rec, err := Project(Normalize(evt))
	if err != nil {
		var pe *ProjectionError
		if errors.As(err, &pe) {
			p.m.ProjectionDrops.WithLabelValues(pe.Field).Inc()
		}
		p.logger.Debug("dropping unprojectable event", zap.Error(err))
		return nil, err
	}

	row, err := Enrich(rec)
	if err != nil {
		p.m.EnrichDrops.Inc()
		p.logger.Debug("dropping unenrichable record", zap.String("event_id", rec.EventID), zap.Error(err))
		return nil, err
	}
	return row, nil
}
