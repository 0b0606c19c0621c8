package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/TobiSchelling/bizscout/internal/business"
)

// SaveRecord writes a business and its children in one transaction and
// returns the new business id. Nothing is written if any insert fails.
func (db *DB) SaveRecord(ctx context.Context, rec business.Record) (id int64, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	id, err = db.insertID(ctx, tx,
		`INSERT INTO businesses (run_id, name, niche, location, website, phone, address,
			rating, reviews_count, hours, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(rec.RunID), rec.Name, nullString(rec.Niche), nullString(rec.Location),
		nullString(rec.Website), nullString(rec.Phone), nullString(rec.Address),
		rec.Rating, rec.ReviewsCount, nullString(rec.Hours),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "inserting business %q", rec.Name)
	}

	if ig := rec.Instagram; ig != nil {
		_, err = tx.ExecContext(ctx, db.rebind(
			`INSERT INTO instagram_data (business_id, username, followers, following, posts,
				engagement_rate, bio, is_verified, is_business)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, ig.Username, ig.Followers, ig.Following, ig.Posts,
			ig.EngagementRate, ig.Bio, ig.IsVerified, ig.IsBusiness,
		)
		if err != nil {
			return 0, eris.Wrap(err, "inserting instagram data")
		}
	}

	if a := rec.Analysis; a != nil {
		_, err = tx.ExecContext(ctx, db.rebind(
			`INSERT INTO analyses (business_id, revenue_streams, estimated_revenue_tier,
				pricing_strategy, service_quality_score, competitive_assessment, niche_specific_insights)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			id, EncodeStringList(a.RevenueStreams), a.EstimatedRevenueTier,
			a.PricingStrategy, a.ServiceQualityScore, a.CompetitiveAssessment, a.NicheSpecificInsights,
		)
		if err != nil {
			return 0, eris.Wrap(err, "inserting analysis")
		}
	}

	if g := rec.WebsiteGrade; rec.Website != "" && !gradeIsEmpty(g) {
		_, err = tx.ExecContext(ctx, db.rebind(
			`INSERT INTO website_grades (business_id, total_score, design_score, seo_score,
				strengths, weaknesses, recommendations)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			id, g.TotalScore, g.DesignScore, g.SEOScore,
			EncodeStringList(g.Strengths), EncodeStringList(g.Weaknesses), EncodeStringList(g.Recommendations),
		)
		if err != nil {
			return 0, eris.Wrap(err, "inserting website grade")
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "committing business")
	}
	return id, nil
}

// insertID runs an INSERT and returns the generated id.
func (db *DB) insertID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if db.driver == Postgres {
		var id int64
		err := tx.QueryRowContext(ctx, db.rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectBusinesses = `SELECT b.id, b.run_id, b.name, b.niche, b.location, b.website, b.phone,
	b.address, b.rating, b.reviews_count, b.hours, b.scraped_at,
	i.business_id, i.username, i.followers, i.following, i.posts, i.engagement_rate,
	i.bio, i.is_verified, i.is_business,
	a.business_id, a.revenue_streams, a.estimated_revenue_tier, a.pricing_strategy,
	a.service_quality_score, a.competitive_assessment, a.niche_specific_insights,
	g.business_id, g.total_score, g.design_score, g.seo_score, g.strengths,
	g.weaknesses, g.recommendations
	FROM businesses b
	LEFT JOIN instagram_data i ON i.business_id = b.id
	LEFT JOIN analyses a ON a.business_id = b.id
	LEFT JOIN website_grades g ON g.business_id = b.id`

// ListBusinesses returns stored businesses, newest first. An empty niche
// matches all; limit <= 0 means no limit.
func (db *DB) ListBusinesses(ctx context.Context, niche string, limit int) ([]StoredBusiness, error) {
	query := selectBusinesses
	var args []any
	if niche = strings.TrimSpace(niche); niche != "" {
		query += " WHERE b.niche = ?"
		args = append(args, niche)
	}
	query += " ORDER BY b.id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "listing businesses")
	}
	defer rows.Close()
	return scanBusinesses(rows)
}

// GetBusiness returns one stored business, or nil if it does not exist.
func (db *DB) GetBusiness(ctx context.Context, id int64) (*StoredBusiness, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(selectBusinesses+" WHERE b.id = ?"), id)
	if err != nil {
		return nil, eris.Wrap(err, "getting business")
	}
	defer rows.Close()
	list, err := scanBusinesses(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// DeleteBusiness removes a business; its children cascade.
func (db *DB) DeleteBusiness(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, db.rebind("DELETE FROM businesses WHERE id = ?"), id)
	return eris.Wrap(err, "deleting business")
}

func scanBusinesses(rows *sql.Rows) ([]StoredBusiness, error) {
	out := []StoredBusiness{}
	for rows.Next() {
		var (
			b StoredBusiness
			i StoredInstagram
			a StoredAnalysis
			g business.WebsiteGrade

			igID, anID, grID             *int64
			isVerified, isBusiness       *bool
			streams                      *string
			total, design, seo           *int
			strengths, weaknesses, recos *string
		)
		err := rows.Scan(
			&b.ID, &b.RunID, &b.Name, &b.Niche, &b.Location, &b.Website, &b.Phone,
			&b.Address, &b.Rating, &b.ReviewsCount, &b.Hours, &b.ScrapedAt,
			&igID, &i.Username, &i.Followers, &i.Following, &i.Posts, &i.EngagementRate,
			&i.Bio, &isVerified, &isBusiness,
			&anID, &streams, &a.EstimatedRevenueTier, &a.PricingStrategy,
			&a.ServiceQualityScore, &a.CompetitiveAssessment, &a.NicheSpecificInsights,
			&grID, &total, &design, &seo, &strengths, &weaknesses, &recos,
		)
		if err != nil {
			return nil, eris.Wrap(err, "scanning business")
		}

		if igID != nil {
			i.IsVerified = isVerified != nil && *isVerified
			i.IsBusiness = isBusiness != nil && *isBusiness
			b.Instagram = &i
		}
		if anID != nil {
			a.RevenueStreams = DecodeStringList(deref(streams))
			b.Analysis = &a
		}
		if grID != nil {
			g.TotalScore, g.DesignScore, g.SEOScore = derefInt(total), derefInt(design), derefInt(seo)
			g.Strengths = DecodeStringList(deref(strengths))
			g.Weaknesses = DecodeStringList(deref(weaknesses))
			g.Recommendations = DecodeStringList(deref(recos))
			b.WebsiteGrade = &g
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "iterating businesses")
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM businesses", &s.Businesses},
		{"SELECT COUNT(*) FROM businesses WHERE website IS NOT NULL AND website <> ''", &s.WithWebsite},
		{"SELECT COUNT(*) FROM instagram_data", &s.WithInstagram},
		{"SELECT COUNT(*) FROM analyses", &s.WithAnalysis},
		{"SELECT COUNT(*) FROM website_grades", &s.Graded},
		{"SELECT COUNT(DISTINCT run_id) FROM businesses", &s.Runs},
		{"SELECT COUNT(DISTINCT niche) FROM businesses", &s.Niches},
	}

	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, eris.Wrapf(err, "stats query %q", q.sql)
		}
	}

	return s, nil
}

// EncodeStringList serializes a list for a TEXT column.
func EncodeStringList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeStringList parses a stored list. Text that is not a JSON list
// decodes to a one-element list holding the raw text.
func DecodeStringList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return []string{s}
	}
	if list == nil {
		return []string{}
	}
	return list
}

func gradeIsEmpty(g business.WebsiteGrade) bool {
	return g.TotalScore == 0 && g.DesignScore == 0 && g.SEOScore == 0 &&
		len(g.Strengths) == 0 && len(g.Weaknesses) == 0 && len(g.Recommendations) == 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
