package app

import (
	"context"
	"fmt"

	"github.com/ayusman/vyayama/internal/store"
	"github.com/ayusman/vyayama/internal/template"
)

// TriggerExtraction starts template extraction for an exercise in the background.
// It reports false, without error, when an extraction is already processing; the persisted
// status is the only guard, so concurrent triggers from any caller start at most one job.
func (a *App) TriggerExtraction(exerciseID string) (bool, error) {
	ex, err := a.store.Exercises().GetByID(exerciseID)
	if err != nil {
		return false, err
	}
	if ex.VideoPath == "" {
		return false, ErrNoVideo
	}

	started, err := a.store.Templates().BeginExtraction(ex.ID)
	if err != nil {
		return false, err
	}
	if !started {
		a.log.Infof("Extraction for %s already processing", ex.Name)
		return false, nil
	}

	a.log.Infof("Extraction for %s: processing %s", ex.Name, ex.VideoPath)
	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		a.runExtraction(a.ctx, ex)
	}()
	return true, nil
}

// Wait blocks until all running extraction jobs have finished.
func (a *App) Wait() {
	a.jobs.Wait()
}

func (a *App) runExtraction(ctx context.Context, ex *store.Exercise) {
	res, err := a.extract(ctx, ex)
	if err != nil {
		a.log.Warnf("Extraction for %s: error: %v", ex.Name, err)
		if err := a.store.Templates().MarkFailed(ex.ID, err.Error()); err != nil {
			a.log.Errorf("Extraction for %s: failed to record error: %v", ex.Name, err)
		}
		return
	}

	if err := a.store.Templates().SaveTemplate(ex.ID, res.Template, res.Keyframes); err != nil {
		a.log.Errorf("Extraction for %s: failed to save template: %v", ex.Name, err)
		if err := a.store.Templates().MarkFailed(ex.ID, err.Error()); err != nil {
			a.log.Errorf("Extraction for %s: failed to record error: %v", ex.Name, err)
		}
		return
	}
	a.log.Infof("Extraction for %s: ready with %d phases from %d keyframes", ex.Name, len(res.Template.Phases), len(res.Keyframes))
}

func (a *App) extract(ctx context.Context, ex *store.Exercise) (*template.Result, error) {
	sampler, err := a.openVideo(ex.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer sampler.Close()

	det, err := a.detectors()
	if err != nil {
		return nil, fmt.Errorf("pose detector: %w", err)
	}
	defer det.Close()

	return template.NewExtractor(a.settings.ExtractionOptions(), a.log).Extract(ctx, sampler, det)
}
