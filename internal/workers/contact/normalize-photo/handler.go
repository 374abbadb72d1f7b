package normalizephoto

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"qrcode-workers/internal/common/config"
	"qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
	"qrcode-workers/internal/common/observability"
	"qrcode-workers/internal/common/validation"
	"qrcode-workers/internal/photo"
)

const TaskType = "contact.photo.normalize"

type Handler struct {
	config       *Config
	logger       logger.Logger
	normalizer   *photo.Normalizer
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		normalizer:   photo.NewNormalizer(workerConfig.Photo, log),
		errorHandler: errors.NewErrorHandler(log),
		obs:          opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType)
	defer span.End()

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
			h.obs.RecordJobProcessed(ctx, TaskType, "completed")
			return
		}
	}

	span.RecordError(err)
	stdErr := errors.FromError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

// Execute decodes photoData and bounds it to the requested box, falling back
// to the configured one for missing dimensions.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	data := strings.TrimSpace(input.PhotoData)
	if base64.StdEncoding.DecodedLen(len(data)) > h.config.MaxInputBytes {
		return nil, errors.NewValidationError(fmt.Sprintf("photoData exceeds %d bytes", h.config.MaxInputBytes))
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.NewInputParsingError(fmt.Errorf("photoData is not valid base64: %w", err))
	}

	maxW, maxH := h.normalizer.Bounds()
	if input.MaxWidth > 0 {
		maxW = input.MaxWidth
	}
	if input.MaxHeight > 0 {
		maxH = input.MaxHeight
	}

	img, err := h.normalizer.NormalizeTo(raw, maxW, maxH)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Photo normalized", map[string]interface{}{
		"sourceBytes": len(raw),
		"width":       img.Width,
		"height":      img.Height,
	})
	return &Output{Photo: img.Data, Width: img.Width, Height: img.Height}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
		cfg.Photo = appConfig.Photo
		if appConfig.Photo.MaxFetchBytes > 0 {
			cfg.MaxInputBytes = int(appConfig.Photo.MaxFetchBytes)
		}
	}
	return cfg
}
