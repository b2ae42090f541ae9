package apiv1

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/dispatcher"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/inference"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/secrets"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/storage"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/usercontext"
)

// download link lifetime for completed conversions
const outputURLLifetime = 15 * time.Minute

// APIServer implements the public v1 API plus the internal callback channel.
type APIServer struct {
	validate      *validator.Validate
	resultHandler *dispatcher.ResultHandler
	secretService *secrets.Service

	storageOnce   sync.Once
	storageClient *storage.Client
}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	notifier := dispatcher.NewNotifier(repos.Subscription, repos.DeliveryLog)

	secretService, err := secrets.NewService()
	if err != nil {
		panic(err)
	}

	return &APIServer{
		validate:      validator.New(),
		resultHandler: dispatcher.NewResultHandler(repos.Conversion, notifier, env.GetEnv("S3_BUCKET_NAME", "")),
		secretService: secretService,
	}
}

// storageOrNil lazily builds the S3 client; presigning is skipped when object
// storage is not configured (dev setups).
func (s *APIServer) storageOrNil() *storage.Client {
	s.storageOnce.Do(func() {
		cfg, err := storage.LoadConfig()
		if err != nil {
			log.Warnf("[API] Object storage not configured, output links disabled: %v", err)
			return
		}
		client, err := storage.NewClient(cfg)
		if err != nil {
			log.Errorf("[API] Failed to initialize object storage: %v", err)
			return
		}
		s.storageClient = client
	})
	return s.storageClient
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// ----- conversions -----

type createConversionRequest struct {
	AudioFileUUID  string `json:"audio_file_uuid" validate:"required,uuid4"`
	VoiceModelUUID string `json:"voice_model_uuid" validate:"required,uuid4"`
	Transposition  int    `json:"transposition" validate:"oneof=-12 -7 -4 0 4 7 12"`
	UsePreview     bool   `json:"use_preview"`
}

// PostConversion creates a new voice conversion in pending_preprocessing.
// The dispatcher picks it up once the referenced audio file finished
// pre-processing.
func (s *APIServer) PostConversion(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)

	var req createConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	repos := repository.GetGlobalRepositories()

	audio, err := repos.AudioFile.GetByUUID(req.AudioFileUUID)
	if err != nil || audio.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Audio file not found"})
	}
	voiceModel, err := repos.VoiceModel.GetByUUID(req.VoiceModelUUID)
	if err != nil || !voiceModel.Active {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Voice model not found"})
	}

	conversion := &models.VoiceConversion{
		UUID:          uuid.New().String(),
		UserID:        userCtx.UserID,
		AudioFileID:   audio.ID,
		VoiceModelID:  voiceModel.ID,
		Transposition: req.Transposition,
		UsePreview:    req.UsePreview,
		Status:        models.ConversionStatusPendingPreprocessing,
	}
	if err := repos.Conversion.Create(conversion); err != nil {
		log.Errorf("[API] Failed to create conversion: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create conversion"})
	}

	if err := dispatcher.SetConversionStatus(conversion.UUID, conversion.Status); err != nil {
		log.Warnf("[API] Status cache write failed for conversion %s: %v", conversion.UUID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conversion)
}

// GetConversion returns one conversion; completed ones carry a time-limited
// download link for the output.
func (s *APIServer) GetConversion(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)

	conversion, err := repository.GetGlobalRepositories().Conversion.GetByUUID(c.Params("uuid"))
	if err != nil || conversion.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Conversion not found"})
	}

	response := fiber.Map{"conversion": conversion}
	if conversion.Status == models.ConversionStatusCompleted && conversion.OutputKey != "" {
		if client := s.storageOrNil(); client != nil {
			url, err := client.PresignDownload(c.Context(), conversion.OutputKey, outputURLLifetime)
			if err != nil {
				log.Errorf("[API] Presign failed for conversion %s: %v", conversion.UUID, err)
			} else {
				response["output_url"] = url
			}
		}
	}

	return c.JSON(response)
}

// GetConversionStatus returns the processing status from the cache, falling
// back to the database when the cache entry expired.
func (s *APIServer) GetConversionStatus(c *fiber.Ctx) error {
	conversionUUID := c.Params("uuid")
	if conversionUUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "uuid missing"})
	}

	status, err := dispatcher.GetConversionStatus(conversionUUID)
	if err != nil || status == "" {
		userCtx := usercontext.FromCtx(c)
		conversion, err := repository.GetGlobalRepositories().Conversion.GetByUUID(conversionUUID)
		if err != nil || conversion.UserID != userCtx.UserID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Conversion not found"})
		}
		status = conversion.Status
	}

	return c.JSON(fiber.Map{"uuid": conversionUUID, "status": status})
}

// GetConversions lists the caller's conversions
func (s *APIServer) GetConversions(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit > 100 {
		limit = 100
	}

	conversions, err := repository.GetGlobalRepositories().Conversion.ListByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list conversions"})
	}

	return c.JSON(fiber.Map{"conversions": conversions})
}

// ----- audio file registry -----

type registerAudioFileRequest struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	FileSize int64  `json:"file_size" validate:"min=0"`
}

// PostAudioFile registers an uploaded recording. The service assigns the
// storage location; the upload itself and the subsequent pre-processing
// happen outside and report back through the internal channel.
func (s *APIServer) PostAudioFile(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)

	var req registerAudioFileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	fileUUID := uuid.New().String()
	audio := &models.AudioFile{
		UUID:          fileUUID,
		UserID:        userCtx.UserID,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		StorageBucket: env.GetEnv("S3_BUCKET_NAME", ""),
		StorageKey:    fmt.Sprintf("uploads/%s/%s", fileUUID, req.FileName),
	}
	if err := repository.GetGlobalRepositories().AudioFile.Create(audio); err != nil {
		log.Errorf("[API] Failed to register audio file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not register audio file"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"audio_file":      audio,
		"upload_location": audio.Location(),
	})
}

// ----- voice model catalog -----

// GetVoiceModels lists the active voice catalog
func (s *APIServer) GetVoiceModels(c *fiber.Ctx) error {
	catalog, err := repository.GetGlobalRepositories().VoiceModel.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list voice models"})
	}
	return c.JSON(fiber.Map{"models": catalog})
}

// ----- webhook subscriptions -----

type createSubscriptionRequest struct {
	TargetURL              string   `json:"target_url" validate:"required,url,max=500"`
	Secret                 string   `json:"secret" validate:"required,min=16,max=200"`
	Events                 []string `json:"events" validate:"required,min=1,dive,oneof=conversion.completed conversion.failed"`
	AutoDisableOnFailure   *bool    `json:"auto_disable_on_failure"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures"`
}

// PostSubscription registers a webhook endpoint. The signing secret is
// encrypted before it touches the database.
func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	encrypted, err := s.secretService.Encrypt(req.Secret)
	if err != nil {
		log.Errorf("[API] Secret encryption failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store secret"})
	}

	sub := &models.WebhookSubscription{
		UUID:                 uuid.New().String(),
		UserID:               userCtx.UserID,
		TargetURL:            req.TargetURL,
		SecretEncrypted:      encrypted,
		Events:               models.StringList(req.Events),
		Active:               true,
		AutoDisableOnFailure: true,
	}
	if req.AutoDisableOnFailure != nil {
		sub.AutoDisableOnFailure = *req.AutoDisableOnFailure
	}
	if req.MaxConsecutiveFailures > 0 {
		sub.MaxConsecutiveFailures = req.MaxConsecutiveFailures
	} else {
		sub.MaxConsecutiveFailures = 10
	}

	if err := repository.GetGlobalRepositories().Subscription.Create(sub); err != nil {
		log.Errorf("[API] Failed to create subscription: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create subscription"})
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetSubscriptions lists the caller's webhook subscriptions
func (s *APIServer) GetSubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)

	subs, err := repository.GetGlobalRepositories().Subscription.ListByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list subscriptions"})
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

type updateSubscriptionRequest struct {
	TargetURL *string   `json:"target_url" validate:"omitempty,url,max=500"`
	Secret    *string   `json:"secret" validate:"omitempty,min=16,max=200"`
	Events    *[]string `json:"events" validate:"omitempty,min=1,dive,oneof=conversion.completed conversion.failed"`
	Active    *bool     `json:"active"`
}

// PatchSubscription updates endpoint, secret, event set or active flag.
// Re-activating resets the failure streak so auto-disable starts fresh.
func (s *APIServer) PatchSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)
	repos := repository.GetGlobalRepositories()

	sub, err := repos.Subscription.GetByUUID(c.Params("uuid"))
	if err != nil || sub.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
	}

	var req updateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	if req.TargetURL != nil {
		sub.TargetURL = *req.TargetURL
	}
	if req.Secret != nil {
		encrypted, err := s.secretService.Encrypt(*req.Secret)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store secret"})
		}
		sub.SecretEncrypted = encrypted
	}
	if req.Events != nil {
		sub.Events = models.StringList(*req.Events)
	}
	if req.Active != nil {
		sub.Active = *req.Active
		if sub.Active {
			sub.ConsecutiveFailures = 0
		}
	}

	if err := repos.Subscription.Update(sub); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not update subscription"})
	}
	return c.JSON(sub)
}

// DeleteSubscription soft-deletes a subscription
func (s *APIServer) DeleteSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)
	repos := repository.GetGlobalRepositories()

	sub, err := repos.Subscription.GetByUUID(c.Params("uuid"))
	if err != nil || sub.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
	}
	if err := repos.Subscription.Delete(sub.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not delete subscription"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSubscriptionDeliveries returns the delivery history of a subscription
func (s *APIServer) GetSubscriptionDeliveries(c *fiber.Ctx) error {
	userCtx := usercontext.FromCtx(c)
	repos := repository.GetGlobalRepositories()

	sub, err := repos.Subscription.GetByUUID(c.Params("uuid"))
	if err != nil || sub.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit > 100 {
		limit = 100
	}

	deliveries, err := repos.DeliveryLog.ListBySubscriptionID(sub.ID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list deliveries"})
	}
	return c.JSON(fiber.Map{"deliveries": deliveries})
}

// ----- internal callback channel -----

type preprocessedRequest struct {
	Format          string  `json:"format" validate:"required,oneof=wav mp3 flac ogg"`
	DurationSeconds float64 `json:"duration_seconds" validate:"required,gt=0"`
}

// PostAudioPreprocessed is called by the pre-processing pipeline once an
// uploaded recording is analyzed. Setting the flag is what makes conversions
// referencing this file eligible for dispatch.
func (s *APIServer) PostAudioPreprocessed(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	audio, err := repos.AudioFile.GetByUUID(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Audio file not found"})
	}

	var req preprocessedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	if err := repos.AudioFile.MarkPreprocessed(audio.ID, req.Format, req.DurationSeconds); err != nil {
		log.Errorf("[API] Failed to mark audio %s preprocessed: %v", audio.UUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not update audio file"})
	}

	return c.JSON(fiber.Map{"accepted": true})
}

// PostInferenceCallback consumes the asynchronous result from the inference
// service. NotFound and out-of-state callbacks are rejected distinctly so the
// sender can tell a permanent mistake from a transient failure.
func (s *APIServer) PostInferenceCallback(c *fiber.Ctx) error {
	var cb inference.Callback
	if err := c.BodyParser(&cb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := s.validate.Struct(&cb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	if err := s.resultHandler.HandleCallback(cb); err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrConversionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown request id"})
		case errors.Is(err, dispatcher.ErrInvalidConversionState):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Conversion is not awaiting a result"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown request id"})
		default:
			log.Errorf("[API] Callback processing failed for request %s: %v", cb.RequestID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Callback processing failed"})
		}
	}

	return c.JSON(fiber.Map{"accepted": true})
}
