package enrollment

import (
	"context"
	"time"

	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/store"
)

// EnrollmentView is an enrollment record together with the names and dates
// a client needs to display it.
type EnrollmentView struct {
	domain.Enrollment

	UserName    string    `json:"user_name"`
	CourseID    int64     `json:"course_id"`
	CourseName  string    `json:"course_name"`
	SessionName string    `json:"session_name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// projector resolves users and sessions once per call.
type projector struct {
	stores   store.Stores
	users    map[int64]*domain.User
	sessions map[int64]*domain.SessionSnapshot
}

func newProjector(s store.Stores) *projector {
	return &projector{
		stores:   s,
		users:    make(map[int64]*domain.User),
		sessions: make(map[int64]*domain.SessionSnapshot),
	}
}

// seed records lookups the caller already made.
func (p *projector) seed(u *domain.User, sess *domain.SessionSnapshot) *projector {
	if u != nil {
		p.users[u.ID] = u
	}
	if sess != nil {
		p.sessions[sess.SessionID] = sess
	}
	return p
}

func (p *projector) view(ctx context.Context, e *domain.Enrollment) (*EnrollmentView, error) {
	u, ok := p.users[e.UserID]
	if !ok {
		var err error
		if u, err = p.stores.Users.GetUser(ctx, e.UserID); err != nil {
			return nil, err
		}
		p.users[u.ID] = u
	}

	sess, ok := p.sessions[e.SessionID]
	if !ok {
		var err error
		if sess, err = p.stores.Catalog.GetSession(ctx, e.SessionID); err != nil {
			return nil, err
		}
		p.sessions[sess.SessionID] = sess
	}

	return &EnrollmentView{
		Enrollment:  *e,
		UserName:    u.DisplayName,
		CourseID:    sess.CourseID,
		CourseName:  sess.CourseName,
		SessionName: sess.SessionName,
		StartDate:   sess.StartDate,
		EndDate:     sess.EndDate,
	}, nil
}

func (p *projector) views(ctx context.Context, list []*domain.Enrollment) ([]*EnrollmentView, error) {
	out := make([]*EnrollmentView, 0, len(list))
	for _, e := range list {
		v, err := p.view(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
