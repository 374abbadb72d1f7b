package buildcontactpayload

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
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/photo"
	"qrcode-workers/internal/qrrender"
)

const TaskType = "contact.payload.build"

// PayloadBuilder is satisfied by *contact.Builder.
type PayloadBuilder interface {
	Value(ctx context.Context, mode contact.Mode, fields contact.Fields, source contact.PhotoSource, rawURL string) (contact.Payload, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	builder      PayloadBuilder
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Builder       PayloadBuilder
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"taskType": TaskType})

	builder := opts.Builder
	if builder == nil {
		builder = contact.NewBuilder(
			photo.NewNormalizer(workerConfig.Photo, loggerInstance),
			contact.NewHTTPFetcher(workerConfig.Photo, loggerInstance),
			loggerInstance,
			contact.WithObservability(opts.Observability),
		)
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		builder:      builder,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		obs:          opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing contact payload build", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

// Execute resolves the photo source and builds the value to encode.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	mode, err := contact.ParseMode(input.Mode)
	if err != nil {
		return nil, err
	}
	color, err := qrrender.ParseColor(input.Color)
	if err != nil {
		return nil, err
	}
	source, err := photoSource(input)
	if err != nil {
		return nil, err
	}

	fields := contact.Fields{
		Name:     input.Name,
		JobTitle: input.JobTitle,
		TaxID:    input.TaxID,
		Phone:    input.Phone,
		Email:    input.Email,
		Website:  input.Website,
	}

	value, err := h.builder.Value(ctx, mode, fields, source, input.URL)
	if err != nil {
		return nil, err
	}

	return &Output{
		QRValue:  value.String(),
		QRColor:  string(color),
		HasPhoto: contact.HasPhoto(value),
		Mode:     string(mode),
	}, nil
}

func photoSource(input *Input) (contact.PhotoSource, error) {
	data := strings.TrimSpace(input.PhotoData)
	photoURL := strings.TrimSpace(input.PhotoURL)

	switch {
	case data != "" && photoURL != "":
		return nil, errors.NewValidationError("photoData and photoUrl are mutually exclusive")
	case data != "":
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, errors.NewInputParsingError(fmt.Errorf("photoData is not valid base64: %w", err))
		}
		return contact.LocalFile{Data: raw}, nil
	case photoURL != "":
		return contact.RemoteURL{URL: photoURL}, nil
	default:
		return contact.NoPhoto{}, nil
	}
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
		return
	}

	h.logger.Info("Contact payload built", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"mode":         output.Mode,
		"hasPhoto":     output.HasPhoto,
		"payloadBytes": len(output.QRValue),
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	stdErr := errors.FromError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
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
	}

	return cfg
}
