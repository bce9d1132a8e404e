package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLStore persists the core entities through database/sql. Works against
// postgres (pgx stdlib driver) and sqlite (modernc); structured fields ride
// in JSON columns.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutScale(ctx context.Context, sc Scale) error {
	comp, err := json.Marshal(sc.CompositeOf)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scales (id,name,domain,type,composite_of,sort_order)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, domain=EXCLUDED.domain, type=EXCLUDED.type, composite_of=EXCLUDED.composite_of, sort_order=EXCLUDED.sort_order`,
		sc.ID, sc.Name, string(sc.Domain), string(sc.Type), string(comp), sc.SortOrder)
	return err
}

func (s *SQLStore) ListScales(ctx context.Context) ([]Scale, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,domain,type,composite_of,sort_order FROM scales ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Scale
	for rows.Next() {
		var sc Scale
		var domain, typ, comp string
		if err := rows.Scan(&sc.ID, &sc.Name, &domain, &typ, &comp, &sc.SortOrder); err != nil {
			return nil, err
		}
		sc.Domain = Domain(domain)
		sc.Type = ScaleType(typ)
		if comp != "" && comp != "null" {
			if err := json.Unmarshal([]byte(comp), &sc.CompositeOf); err != nil {
				return nil, err
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutItem(ctx context.Context, it Item) error {
	payload, err := json.Marshal(it)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO items (id,scale_id,domain,format,distortion,active,sort_order,payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET scale_id=EXCLUDED.scale_id, domain=EXCLUDED.domain, format=EXCLUDED.format, distortion=EXCLUDED.distortion, active=EXCLUDED.active, sort_order=EXCLUDED.sort_order, payload=EXCLUDED.payload`,
		it.ID, it.ScaleID, string(it.Domain), string(it.Format), it.Distortion, it.Active, it.Order, string(payload))
	return err
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM items WHERE id=$1`, id)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, errNotFound("item %s", id)
		}
		return Item{}, err
	}
	var it Item
	if err := json.Unmarshal([]byte(payload), &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (s *SQLStore) ListItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	q := `SELECT payload FROM items WHERE 1=1`
	var args []any
	n := 0
	if f.Domain != "" {
		n++
		q += fmt.Sprintf(` AND domain=$%d`, n)
		args = append(args, string(f.Domain))
	}
	if f.ScaleID != "" {
		n++
		q += fmt.Sprintf(` AND scale_id=$%d`, n)
		args = append(args, f.ScaleID)
	}
	if f.ActiveOnly {
		q += ` AND active`
	}
	q += ` ORDER BY scale_id, sort_order, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var it Item
		if err := json.Unmarshal([]byte(payload), &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutCandidate(ctx context.Context, c Candidate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO candidates (id,name,email,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email`,
		c.ID, c.Name, c.Email, c.CreatedAt)
	return err
}

func (s *SQLStore) GetCandidate(ctx context.Context, id string) (Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,email,created_at FROM candidates WHERE id=$1`, id)
	var c Candidate
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Candidate{}, errNotFound("candidate %s", id)
		}
		return Candidate{}, err
	}
	return c, nil
}

func (s *SQLStore) CreateAssessment(ctx context.Context, a Assessment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO assessments
		(id,candidate_id,type,status,current_section,current_item_index,started_at,completed_at,expires_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.CandidateID, string(a.Type), string(a.Status), string(a.CurrentSection),
		a.CurrentItemIndex, a.StartedAt, a.CompletedAt, a.ExpiresAt, a.CreatedAt)
	return err
}

func (s *SQLStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,candidate_id,type,status,current_section,current_item_index,started_at,completed_at,expires_at,created_at
		FROM assessments WHERE id=$1`, id)
	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assessment{}, errNotFound("assessment %s", id)
		}
		return Assessment{}, err
	}
	return a, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAssessment(r rowScanner) (Assessment, error) {
	var a Assessment
	var typ, status, section string
	if err := r.Scan(&a.ID, &a.CandidateID, &typ, &status, &section,
		&a.CurrentItemIndex, &a.StartedAt, &a.CompletedAt, &a.ExpiresAt, &a.CreatedAt); err != nil {
		return Assessment{}, err
	}
	a.Type = AssessmentType(typ)
	a.Status = Status(status)
	a.CurrentSection = Domain(section)
	return a, nil
}

func (s *SQLStore) UpdateAssessment(ctx context.Context, a Assessment) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assessments SET status=$1, current_section=$2, current_item_index=$3, started_at=$4, completed_at=$5 WHERE id=$6`,
		string(a.Status), string(a.CurrentSection), a.CurrentItemIndex, a.StartedAt, a.CompletedAt, a.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errNotFound("assessment %s", a.ID)
	}
	return nil
}

func (s *SQLStore) ListAssessments(ctx context.Context, opts ListOpts) ([]Assessment, error) {
	q := `SELECT id,candidate_id,type,status,current_section,current_item_index,started_at,completed_at,expires_at,created_at
		FROM assessments WHERE 1=1`
	var args []any
	n := 0
	if opts.CandidateID != "" {
		n++
		q += fmt.Sprintf(` AND candidate_id=$%d`, n)
		args = append(args, opts.CandidateID)
	}
	if opts.Status != "" {
		n++
		q += fmt.Sprintf(` AND status=$%d`, n)
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		n++
		q += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		n++
		q += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendResponse(ctx context.Context, r Response) error {
	value, err := json.Marshal(r.Value)
	if err != nil {
		return err
	}
	var isCorrect sql.NullBool
	if r.IsCorrect != nil {
		isCorrect = sql.NullBool{Bool: *r.IsCorrect, Valid: true}
	}
	var theta sql.NullFloat64
	if r.Theta != nil {
		theta = sql.NullFloat64{Float64: *r.Theta, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO responses (id,assessment_id,item_id,value,response_time_ms,is_correct,theta,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.AssessmentID, r.ItemID, string(value), r.ResponseTimeMs, isCorrect, theta, r.CreatedAt)
	return err
}

func (s *SQLStore) ListResponses(ctx context.Context, assessmentID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,assessment_id,item_id,value,response_time_ms,is_correct,theta,created_at
		FROM responses WHERE assessment_id=$1 ORDER BY seq`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		var r Response
		var value string
		var isCorrect sql.NullBool
		var theta sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.ItemID, &value, &r.ResponseTimeMs, &isCorrect, &theta, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(value), &r.Value); err != nil {
			return nil, err
		}
		if isCorrect.Valid {
			v := isCorrect.Bool
			r.IsCorrect = &v
		}
		if theta.Valid {
			v := theta.Float64
			r.Theta = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutScaleScores writes the finalized profile in one transaction so a
// completed assessment either has all its rows or none.
func (s *SQLStore) PutScaleScores(ctx context.Context, assessmentID string, scores []ScaleScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM scale_scores WHERE assessment_id=$1`, assessmentID); err != nil {
		return err
	}
	for _, sc := range scores {
		var theta sql.NullFloat64
		if sc.Theta != nil {
			theta = sql.NullFloat64{Float64: *sc.Theta, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scale_scores (id,assessment_id,scale_id,raw,sten,percentile,theta,item_count,computed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			sc.ID, assessmentID, sc.ScaleID, sc.Raw, sc.Sten, sc.Percentile, theta, sc.ItemCount, sc.ComputedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListScaleScores(ctx context.Context, assessmentID string) ([]ScaleScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,assessment_id,scale_id,raw,sten,percentile,theta,item_count,computed_at
		FROM scale_scores WHERE assessment_id=$1 ORDER BY scale_id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScaleScore
	for rows.Next() {
		var sc ScaleScore
		var theta sql.NullFloat64
		if err := rows.Scan(&sc.ID, &sc.AssessmentID, &sc.ScaleID, &sc.Raw, &sc.Sten, &sc.Percentile, &theta, &sc.ItemCount, &sc.ComputedAt); err != nil {
			return nil, err
		}
		if theta.Valid {
			v := theta.Float64
			sc.Theta = &v
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutModel(ctx context.Context, m PerformanceModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	ranges, err := json.Marshal(m.Ranges)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO performance_models (id,name,category,template,ranges)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, category=EXCLUDED.category, template=EXCLUDED.template, ranges=EXCLUDED.ranges`,
		m.ID, m.Name, m.Category, m.Template, string(ranges))
	return err
}

func (s *SQLStore) GetModel(ctx context.Context, id string) (PerformanceModel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,category,template,ranges FROM performance_models WHERE id=$1`, id)
	m, err := scanModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PerformanceModel{}, errNotFound("model %s", id)
		}
		return PerformanceModel{}, err
	}
	return m, nil
}

func scanModel(r rowScanner) (PerformanceModel, error) {
	var m PerformanceModel
	var ranges string
	if err := r.Scan(&m.ID, &m.Name, &m.Category, &m.Template, &ranges); err != nil {
		return PerformanceModel{}, err
	}
	if err := json.Unmarshal([]byte(ranges), &m.Ranges); err != nil {
		return PerformanceModel{}, err
	}
	return m, nil
}

func (s *SQLStore) ListModels(ctx context.Context) ([]PerformanceModel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,category,template,ranges FROM performance_models ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PerformanceModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
