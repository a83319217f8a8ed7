package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/siva27neelam/story-telling/api/middleware"
	"github.com/siva27neelam/story-telling/api/responses"
	"github.com/siva27neelam/story-telling/api/validators"
	"github.com/siva27neelam/story-telling/internal/pipeline"
	"github.com/siva27neelam/story-telling/internal/stats"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
)

// ImagePipeline is the operator-facing surface of the image pipeline.
type ImagePipeline interface {
	StartMigration(ctx context.Context, batchSize int) (stats.MigrationStats, error)
	MigrateRecord(ctx context.Context, collection enums.ImageCollection, id int64) (stats.Outcome, error)
	StartLocalCompressionSweep(ctx context.Context) (stats.CompressionStats, error)
	StartRemoteOptimization(ctx context.Context) (stats.CompressionStats, error)
	Status(ctx context.Context) (*pipeline.Status, error)
}

type migrationResponse struct {
	Covers stats.RunStats `json:"covers"`
	Pages  stats.RunStats `json:"pages"`
	Total  stats.RunStats `json:"total"`
}

type compressionResponse struct {
	Covers stats.RunStats `json:"covers"`
	Pages  stats.RunStats `json:"pages"`
	Total  stats.RunStats `json:"total"`
}

type migrateRecordRequest struct {
	Collection string `json:"collection" validate:"required,image_collection"`
	ID         int64  `json:"id" validate:"required,min=1"`
}

type outcomeResponse struct {
	Collection enums.ImageCollection `json:"collection"`
	ID         int64                 `json:"id"`
	Outcome    stats.OutcomeKind     `json:"outcome"`
	Bytes      int64                 `json:"bytes"`
	Error      string                `json:"error,omitempty"`
}

func operatorContext(r *http.Request, logg *logger.Logger) context.Context {
	ctx := pipeline.WithTrigger(r.Context(), pipeline.TriggerOperator)
	if logg == nil {
		return ctx
	}
	if op := middleware.OperatorFromContext(ctx); op != "" {
		ctx = logg.WithField(ctx, "operator", op)
	}
	return ctx
}

// AdminStartMigration migrates every unmigrated cover and page image.
func AdminStartMigration(svc ImagePipeline, limits config.MigrationConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image pipeline unavailable"))
			return
		}
		batchSize, err := validators.ParseQueryInt(r, "batch_size", limits.BatchSize, 1, limits.MaxBatchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartMigration(operatorContext(r, logg), batchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, migrationResponse{Covers: result.Covers, Pages: result.Pages, Total: result.Total()})
	}
}

// AdminMigrateRecord migrates one record by collection and id.
func AdminMigrateRecord(svc ImagePipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image pipeline unavailable"))
			return
		}
		var req migrateRecordRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		collection, err := enums.ParseImageCollection(strings.TrimSpace(req.Collection))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collection"))
			return
		}

		outcome, err := svc.MigrateRecord(operatorContext(r, logg), collection, req.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := outcomeResponse{Collection: collection, ID: req.ID, Outcome: outcome.Kind, Bytes: outcome.Bytes}
		if outcome.Err != nil {
			resp.Error = outcome.Err.Error()
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminStartLocalCompression runs the legacy blob compression sweep.
func AdminStartLocalCompression(svc ImagePipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image pipeline unavailable"))
			return
		}
		result, err := svc.StartLocalCompressionSweep(operatorContext(r, logg))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, compressionResponse{Covers: result.Covers, Pages: result.Pages, Total: result.Total()})
	}
}

// AdminStartRemoteOptimization optimizes stored objects; 409 while a run is
// in flight.
func AdminStartRemoteOptimization(svc ImagePipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image pipeline unavailable"))
			return
		}
		result, err := svc.StartRemoteOptimization(operatorContext(r, logg))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, compressionResponse{Covers: result.Covers, Pages: result.Pages, Total: result.Total()})
	}
}

func AdminImageStatus(svc ImagePipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image pipeline unavailable"))
			return
		}
		status, err := svc.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
