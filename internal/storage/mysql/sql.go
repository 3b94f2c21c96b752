package mysql

const insertPredictionSQL = `
INSERT INTO predictions
  (id, city, locality, property_type, furnishing, area_sqft, bathrooms, age_years,
   amenities_count, parking_spots, floor, total_floors,
   predicted_price, lower_bound, upper_bound, source, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectPredictionCols = `
SELECT
  id, city, locality, property_type, furnishing, area_sqft, bathrooms, age_years,
  amenities_count, parking_spots, floor, total_floors,
  predicted_price, lower_bound, upper_bound, source, created_at
FROM predictions
`

const getPredictionSQL = selectPredictionCols + `WHERE id = ?`

// Newest first; aligns with idx_predictions_created.
const listPredictionsSQL = selectPredictionCols + `ORDER BY created_at DESC, id DESC LIMIT ?`
