package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const assetColumns = "id, batch_id, status, image_ref, ocr_text, ocr_raw, ocr_confidence, attributes_json, classification_json, player_id, match_confidence, match_json, valuation_amount, valuation_currency, valuation_source, valuation_link, ebay_sold_url, marketplace_url, thumbnail_ref, error_message, completed_at, created_at, updated_at"

const batchColumns = "id, name, total_count, processed_count, status, created_at, updated_at"

const jobColumns = "id, asset_id, job_type, status, payload, attempts, error_message, claimed_by, claimed_at, created_at, updated_at"

type scanner interface{ Scan(dest ...any) error }

func scanAsset(row scanner) (*Asset, error) {
	var (
		asset          Asset
		status         string
		ocrText        sql.NullString
		ocrRaw         sql.NullString
		attributes     sql.NullString
		classification sql.NullString
		playerID       sql.NullInt64
		matchJSON      sql.NullString
		currency       sql.NullString
		source         sql.NullString
		link           sql.NullString
		ebaySold       sql.NullString
		marketplace    sql.NullString
		thumbnail      sql.NullString
		errorMessage   sql.NullString
		completedRaw   sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := row.Scan(
		&asset.ID,
		&asset.BatchID,
		&status,
		&asset.ImageRef,
		&ocrText,
		&ocrRaw,
		&asset.OCRConfidence,
		&attributes,
		&classification,
		&playerID,
		&asset.MatchConfidence,
		&matchJSON,
		&asset.ValuationAmount,
		&currency,
		&source,
		&link,
		&ebaySold,
		&marketplace,
		&thumbnail,
		&errorMessage,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	asset.Status = AssetStatus(status)
	asset.OCRText = ocrText.String
	asset.OCRRaw = ocrRaw.String
	asset.AttributesJSON = attributes.String
	asset.ClassificationJSON = classification.String
	if playerID.Valid {
		id := playerID.Int64
		asset.PlayerID = &id
	}
	asset.MatchJSON = matchJSON.String
	asset.ValuationCurrency = currency.String
	asset.ValuationSource = source.String
	asset.ValuationLink = link.String
	asset.EbaySoldURL = ebaySold.String
	asset.MarketplaceURL = marketplace.String
	asset.ThumbnailRef = thumbnail.String
	asset.ErrorMessage = errorMessage.String
	if completedRaw.Valid {
		if ts, err := parseTimeString(completedRaw.String); err == nil {
			asset.CompletedAt = &ts
		}
	}
	asset.CreatedAt, _ = parseTimeString(createdRaw)
	asset.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &asset, nil
}

func scanBatch(row scanner) (*Batch, error) {
	var (
		batch      Batch
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(
		&batch.ID,
		&batch.Name,
		&batch.TotalCount,
		&batch.ProcessedCount,
		&status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	batch.Status = BatchStatus(status)
	batch.CreatedAt, _ = parseTimeString(createdRaw)
	batch.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &batch, nil
}

func scanJob(row scanner) (*Job, error) {
	var (
		job          Job
		jobType      string
		status       string
		payload      sql.NullString
		errorMessage sql.NullString
		claimedBy    sql.NullString
		claimedRaw   sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := row.Scan(
		&job.ID,
		&job.AssetID,
		&jobType,
		&status,
		&payload,
		&job.Attempts,
		&errorMessage,
		&claimedBy,
		&claimedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Type = JobType(jobType)
	job.Status = JobStatus(status)
	job.Payload = payload.String
	job.ErrorMessage = errorMessage.String
	job.ClaimedBy = claimedBy.String
	if claimedRaw.Valid {
		if ts, err := parseTimeString(claimedRaw.String); err == nil {
			job.ClaimedAt = &ts
		}
	}
	job.CreatedAt, _ = parseTimeString(createdRaw)
	job.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
