package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"productshot/internal/compliance"
	"productshot/internal/domain"
	"productshot/internal/providers/image"
	"productshot/internal/storage"
)

// Pipeline steps, in execution order.
const (
	stepBuild    = "build_prompt"
	stepFetch    = "fetch_input"
	stepGenerate = "generate"
	stepUpload   = "upload_output"
	stepRecord   = "record_asset"
	stepSpend    = "spend_credit"
)

var stepMessages = map[string]string{
	stepBuild:    "could not build generation instructions",
	stepFetch:    "could not fetch input image",
	stepGenerate: "image generation failed",
	stepUpload:   "could not store generated image",
	stepRecord:   "could not record output asset",
	stepSpend:    "generation succeeded but credit charge failed",
}

const (
	maxErrorLen     = 500
	finalizeTimeout = 10 * time.Second
)

type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", stepMessages[e.step], e.err)
}

func (e *stepError) Unwrap() error { return e.err }

func fail(step string, err error) error {
	return &stepError{step: step, err: err}
}

// run drives one job from queued to a terminal state. The only output of a
// pipeline is the job row.
func (o *Orchestrator) run(job domain.Job) {
	defer o.wg.Done()
	log := o.logger.With().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("mode", string(job.Mode)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pipeline panicked")
			o.finishFailed(job.ID, "internal error during generation", log)
		}
	}()

	ctx, cancel := context.WithTimeout(o.base, o.cfg.JobTimeout)
	defer cancel()

	if err := o.deps.Jobs.MarkRunning(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("mark running failed")
		o.finishFailed(job.ID, "could not start job", log)
		return
	}

	started := time.Now()
	outputID, err := o.execute(ctx, job, log)
	if err != nil {
		var se *stepError
		step := "unknown"
		if errors.As(err, &se) {
			step = se.step
		}
		log.Error().Err(err).Str("step", step).Dur("elapsed", time.Since(started)).Msg("job failed")
		o.finishFailed(job.ID, err.Error(), log)
		return
	}

	fctx, fcancel := o.finalizeContext()
	defer fcancel()
	if err := o.deps.Jobs.MarkSucceeded(fctx, job.ID, o.cfg.CostPerGeneration, outputID); err != nil {
		// The charge is already recorded; the stale sweep reconciles the row.
		log.Error().Err(err).Msg("mark succeeded failed")
		return
	}
	log.Info().
		Str("output_asset_id", outputID).
		Int("cost_units", o.cfg.CostPerGeneration).
		Dur("elapsed", time.Since(started)).
		Msg("job succeeded")
}

// execute runs the pipeline steps strictly in order and returns the output
// asset id. Credits are spent last, after the output is persisted.
func (o *Orchestrator) execute(ctx context.Context, job domain.Job, log zerolog.Logger) (string, error) {
	var inputs compliance.Inputs
	if len(job.Inputs) > 0 {
		if err := json.Unmarshal(job.Inputs, &inputs); err != nil {
			return "", fail(stepBuild, fmt.Errorf("decode inputs: %w", err))
		}
	}
	built, err := o.deps.Engine.Build(job.Mode, inputs)
	if err != nil {
		return "", fail(stepBuild, err)
	}
	audit, err := json.Marshal(built.Audit)
	if err != nil {
		return "", fail(stepBuild, fmt.Errorf("encode audit: %w", err))
	}
	log.Debug().Str("step", stepBuild).Int("warnings", len(built.Audit.Warnings)).Msg("instruction built")

	input, err := o.deps.Assets.GetByID(ctx, job.InputAssetID)
	if err != nil {
		return "", fail(stepFetch, err)
	}
	url, err := o.deps.Store.SignedReadURL(ctx, input.Bucket, input.StoragePath, o.cfg.SignedURLTTL)
	if err != nil {
		return "", fail(stepFetch, err)
	}
	fetchCtx, cancelFetch := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	data, mime, err := o.deps.Fetcher.Fetch(fetchCtx, url)
	cancelFetch()
	if err != nil {
		return "", fail(stepFetch, err)
	}
	if input.MIME != "" {
		mime = input.MIME
	}
	log.Debug().Str("step", stepFetch).Int("bytes", len(data)).Msg("input fetched")

	out, err := o.deps.Generator.Generate(ctx, image.Request{
		JobID:       job.ID,
		Instruction: built.InstructionText,
		Input:       data,
		InputMIME:   mime,
		Width:       compliance.OutputWidth,
		Height:      compliance.OutputHeight,
	})
	if err != nil {
		return "", fail(stepGenerate, err)
	}
	if out == nil || len(out.Data) == 0 {
		return "", fail(stepGenerate, image.ErrEmptyOutput)
	}
	if out.MIME != "" && out.MIME != "image/png" {
		log.Debug().Str("step", stepGenerate).Str("mime", out.MIME).Msg("re-encoding provider output as png")
	}
	if err := image.EnsurePNG(out); err != nil {
		return "", fail(stepGenerate, err)
	}
	log.Debug().Str("step", stepGenerate).Int("bytes", len(out.Data)).Msg("image generated")

	assetID := uuid.NewString()
	key := storage.OutputKey(job.UserID, job.ProjectID, assetID)
	contentType := out.MIME
	if err := o.deps.Store.Upload(ctx, o.cfg.OutputBucket, key, out.Data, contentType); err != nil {
		return "", fail(stepUpload, err)
	}
	log.Debug().Str("step", stepUpload).Str("path", key).Msg("output stored")

	asset := &domain.Asset{
		ID:            assetID,
		UserID:        job.UserID,
		ProjectID:     job.ProjectID,
		Kind:          domain.AssetKindOutput,
		Bucket:        o.cfg.OutputBucket,
		StoragePath:   key,
		MIME:          contentType,
		Bytes:         int64(len(out.Data)),
		Width:         out.Width,
		Height:        out.Height,
		SourceAssetID: job.InputAssetID,
		Mode:          job.Mode,
		PromptAudit:   audit,
	}
	if err := o.deps.Assets.Create(ctx, asset); err != nil {
		return "", fail(stepRecord, err)
	}

	if _, err := o.deps.Ledger.Spend(ctx, job.UserID, int64(o.cfg.CostPerGeneration), job.ID); err != nil {
		return "", fail(stepSpend, err)
	}
	log.Debug().Str("step", stepSpend).Msg("credit spent")
	return assetID, nil
}

func (o *Orchestrator) finishFailed(jobID, message string, log zerolog.Logger) {
	ctx, cancel := o.finalizeContext()
	defer cancel()
	if err := o.deps.Jobs.MarkFailed(ctx, jobID, truncateMessage(message, maxErrorLen)); err != nil {
		log.Error().Err(err).Msg("mark failed failed")
	}
}

// truncateMessage cuts message to at most limit bytes without splitting a rune.
func truncateMessage(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// finalizeContext outlives the job deadline so a timed-out job can still be
// written as failed.
func (o *Orchestrator) finalizeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(o.base), finalizeTimeout)
}
