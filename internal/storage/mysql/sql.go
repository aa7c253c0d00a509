package mysql

const insertVenueSQL = `
INSERT INTO venues
  (name, slug, address, city, country, lat, lng, phone, website, email,
   rating, rating_count, price_range, description, brand, images, cuisine,
   source, source_id, source_url, data_hash, last_synced)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateVenueSQL = `
UPDATE venues SET
  name         = ?,
  address      = ?,
  city         = ?,
  country      = ?,
  lat          = ?,
  lng          = ?,
  phone        = ?,
  website      = ?,
  email        = ?,
  rating       = ?,
  rating_count = ?,
  price_range  = ?,
  description  = ?,
  brand        = ?,
  images       = ?,
  cuisine      = ?,
  source_url   = ?,
  data_hash    = ?,
  last_synced  = ?
WHERE id = ?
`

const upsertHoursSQL = `
INSERT INTO working_hours (venue_id, day_of_week, open_time, close_time, is_closed)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  open_time  = VALUES(open_time),
  close_time = VALUES(close_time),
  is_closed  = VALUES(is_closed)
`

// source_id is nullable; the unique key (venue_id, source, source_id) only
// guards id-carrying reviews, the (author, text) identity is filtered app-side.
const insertReviewsPrefix = "INSERT IGNORE INTO reviews\n" +
	"  (venue_id, source, source_id, source_url, author, author_avatar, author_reviews, author_photos,\n" +
	"   is_local_guide, rating, `text`, `date`, photos, owner_response, owner_reply_date,\n" +
	"   likes_count, language, translated_text)\nVALUES "

const selectVenueCols = `
  id, name, slug, address, city, country, lat, lng, phone, website, email,
  rating, rating_count, price_range, description, brand, images, cuisine,
  source, source_id, source_url, data_hash, last_synced, created_at
`

const getVenueSQL = "SELECT" + selectVenueCols + "FROM venues WHERE id = ?"

const findBySourceSQL = "SELECT" + selectVenueCols + "FROM venues WHERE source = ? AND source_id = ?"

const findInBBoxSQL = "SELECT" + selectVenueCols + `FROM venues
WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
  AND NOT (source = ? AND source_id = ?)
ORDER BY id`

// Higher-priority sources come first so the scan keeps their rows as merge
// targets; FIELD returns 0 for unknown sources, which DESC puts last.
const listAllSQL = "SELECT" + selectVenueCols + `FROM venues
ORDER BY FIELD(source, '2gis', 'yandex', 'google') DESC, created_at ASC, id ASC`

const sourceStatsSQL = `
SELECT source, COUNT(*), AVG(rating)
FROM venues
GROUP BY source
ORDER BY source`

const listHoursSQL = `
SELECT venue_id, day_of_week, open_time, close_time, is_closed
FROM working_hours
WHERE venue_id = ?
ORDER BY day_of_week`

const countHoursSQL = `SELECT COUNT(*) FROM working_hours WHERE venue_id = ?`

const listReviewsSQL = `
SELECT id, venue_id, source, source_id, source_url, author, author_avatar,
       author_reviews, author_photos, is_local_guide, rating, ` + "`text`, `date`" + `,
       photos, owner_response, owner_reply_date, likes_count, language, translated_text
FROM reviews
WHERE venue_id = ?
ORDER BY ` + "`date`" + ` DESC, id DESC
LIMIT ?`

const reviewKeysSQL = "SELECT source, source_id, author, `text` FROM reviews WHERE venue_id = ?"

const getSyncMetaSQL = `
SELECT venue_id, last_basic_info_sync, last_reviews_sync, last_photos_sync, last_hours_sync
FROM sync_meta
WHERE venue_id = ?`
