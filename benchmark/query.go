package benchmark

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS runs (
			id                      TEXT PRIMARY KEY,
			created_at              TIMESTAMP NOT NULL,
			mode                    TEXT NOT NULL,
			confidence_threshold    REAL NOT NULL,
			overlap_tolerance       REAL NOT NULL,
			samples                 INTEGER NOT NULL,
			errors                  INTEGER NOT NULL,
			skipped                 INTEGER NOT NULL,
			accuracy                REAL NOT NULL,
			mean_levenshtein_ratio  REAL NOT NULL,
			mean_prediction_time_ms REAL NOT NULL,
			mean_iou                REAL NOT NULL,
			total_duration_ms       REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id             TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position           INTEGER NOT NULL,
			filename           TEXT NOT NULL,
			plate              TEXT NOT NULL,
			predicted_plate    TEXT NOT NULL,
			prediction_time_ms REAL NOT NULL,
			iou                REAL NOT NULL,
			failure            TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		);
	`

	queryCreateRun = `
		INSERT INTO runs (
			id,
			created_at,
			mode,
			confidence_threshold,
			overlap_tolerance,
			samples,
			errors,
			skipped,
			accuracy,
			mean_levenshtein_ratio,
			mean_prediction_time_ms,
			mean_iou,
			total_duration_ms
		) VALUES (
			:id,
			:created_at,
			:mode,
			:confidence_threshold,
			:overlap_tolerance,
			:samples,
			:errors,
			:skipped,
			:accuracy,
			:mean_levenshtein_ratio,
			:mean_prediction_time_ms,
			:mean_iou,
			:total_duration_ms
		)
	`

	queryCreateSample = `
		INSERT INTO samples (
			run_id,
			position,
			filename,
			plate,
			predicted_plate,
			prediction_time_ms,
			iou,
			failure
		) VALUES (
			:run_id,
			:position,
			:filename,
			:plate,
			:predicted_plate,
			:prediction_time_ms,
			:iou,
			:failure
		)
	`

	queryGetRuns = `
		SELECT
			id,
			created_at,
			mode,
			confidence_threshold,
			overlap_tolerance,
			samples,
			errors,
			skipped,
			accuracy,
			mean_levenshtein_ratio,
			mean_prediction_time_ms,
			mean_iou,
			total_duration_ms
		FROM runs
		ORDER BY created_at DESC, id
	`

	queryGetSamplesByRun = `
		SELECT
			filename,
			plate,
			predicted_plate,
			prediction_time_ms,
			iou,
			failure
		FROM samples
		WHERE run_id = ?
		ORDER BY position
	`
)
