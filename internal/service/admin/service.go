// Package admin exposes operator actions over gRPC: report review, premium
// grants, synthetic profile control and counters.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/moderation"
	"github.com/oggyb/matchbot/internal/service/premium"
	"github.com/oggyb/matchbot/internal/service/referral"
	"github.com/oggyb/matchbot/internal/service/stats"
)

// defaultSyntheticInterval is the like interval, in seconds, for profiles
// marked synthetic without an explicit one.
const defaultSyntheticInterval = 3600

// Deps are the core services the admin API drives.
type Deps struct {
	Moderation *moderation.Service
	Referrals  *referral.Service
	Premium    *premium.Service
	Matching   *matching.Service
	Stats      *stats.Service
}

// Service implements AdminServer.
type Service struct {
	log       *slog.Logger
	deps      Deps
	synthetic *repository.SyntheticRepository
}

func NewService(appCtx *app.AppContext, deps Deps) *Service {
	return &Service{
		log:       appCtx.Logger.With("service", "admin"),
		deps:      deps,
		synthetic: repository.NewSyntheticRepository(appCtx.DB),
	}
}

var _ AdminServer = (*Service)(nil)

// ListReports pages through reports.
//
// Request fields: status (optional), page_token (optional), limit (optional).
// Response: {reports: [...], next_page_token}.
func (s *Service) ListReports(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	status := stringArg(req, "status")
	var token *string
	if t := stringArg(req, "page_token"); t != "" {
		token = &t
	}
	limit, _ := intArg(req, "limit")

	reports, next, err := s.deps.Moderation.List(ctx, status, token, limit)
	if err != nil {
		s.log.Error("list reports failed", "err", err)
		return nil, svcErr.Map(err)
	}

	items := make([]any, 0, len(reports))
	for i := range reports {
		items = append(items, reportFields(&reports[i]))
	}
	out := map[string]any{"reports": items}
	if next != nil {
		out["next_page_token"] = *next
	}
	return structpb.NewStruct(out)
}

// ReviewReport applies an action to a pending report.
func (s *Service) ReviewReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uintArg(req, "id")
	if err != nil {
		return nil, err
	}
	action := stringArg(req, "action")
	if action == "" {
		return nil, svcErr.InvalidArgument("action is required")
	}

	rep, err := s.deps.Moderation.Review(ctx, id, action, stringArg(req, "notes"))
	if err != nil {
		s.log.Warn("review report failed", "report", id, "action", action, "err", err)
		return nil, svcErr.Map(err)
	}
	return structpb.NewStruct(reportFields(rep))
}

// ReferralStats reports a referrer's progress.
func (s *Service) ReferralStats(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, svcErr.InvalidArgument("user id is required")
	}
	st, err := s.deps.Referrals.Stats(ctx, req.GetValue())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return structpb.NewStruct(map[string]any{
		"code":           st.Code,
		"total":          st.Total,
		"completed":      st.Completed,
		"threshold":      st.Threshold,
		"reward_claimed": st.RewardClaimed,
	})
}

// PremiumStatus returns {active: false} or the running grant.
func (s *Service) PremiumStatus(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	if req.GetValue() == 0 {
		return nil, svcErr.InvalidArgument("user id is required")
	}
	g, err := s.deps.Premium.Status(ctx, req.GetValue())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if g == nil {
		return structpb.NewStruct(map[string]any{"active": false})
	}
	return structpb.NewStruct(grantFields(g))
}

// GrantPremium gives a user free premium days.
//
// Request fields: user_id, days, ref (optional).
func (s *Service) GrantPremium(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := uintArg(req, "user_id")
	if err != nil {
		return nil, err
	}
	days, ok := intArg(req, "days")
	if !ok || days <= 0 {
		return nil, svcErr.InvalidArgument("days must be a positive integer")
	}
	ref := stringArg(req, "ref")
	if ref == "" {
		ref = "admin"
	}

	g, err := s.deps.Premium.Grant(ctx, userID, premium.Plan{ID: "admin", Title: "Admin grant", Days: days}, ref)
	if err != nil {
		s.log.Warn("grant premium failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}
	s.log.Info("premium granted by admin", "user", userID, "days", days)
	return structpb.NewStruct(grantFields(g))
}

// MarkSynthetic turns a profile into an auto-liking one.
//
// Request fields: profile_id, like_interval seconds (optional), active (optional, default true).
func (s *Service) MarkSynthetic(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	profileID, err := uintArg(req, "profile_id")
	if err != nil {
		return nil, err
	}
	interval, ok := intArg(req, "like_interval")
	if !ok {
		interval = defaultSyntheticInterval
	}
	if interval <= 0 {
		return nil, svcErr.InvalidArgument("like_interval must be positive")
	}
	active := true
	if v, ok := req.GetFields()["active"]; ok {
		active = v.GetBoolValue()
	}

	if err := s.synthetic.Mark(ctx, profileID, interval, active); err != nil {
		return nil, svcErr.Map(err)
	}
	s.log.Info("profile marked synthetic", "profile", profileID, "interval", interval, "active", active)
	return &emptypb.Empty{}, nil
}

// SetSyntheticActive toggles auto-liking for a synthetic profile.
func (s *Service) SetSyntheticActive(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	profileID, err := uintArg(req, "profile_id")
	if err != nil {
		return nil, err
	}
	v, ok := req.GetFields()["active"]
	if !ok {
		return nil, svcErr.InvalidArgument("active is required")
	}
	if err := s.synthetic.SetActive(ctx, profileID, v.GetBoolValue()); err != nil {
		return nil, svcErr.Map(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Service) PendingLikeCount(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error) {
	if req.GetValue() == 0 {
		return nil, svcErr.InvalidArgument("profile id is required")
	}
	n, err := s.deps.Matching.CountPendingLikes(ctx, req.GetValue())
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return wrapperspb.Int64(n), nil
}

func (s *Service) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.deps.Stats.Snapshot(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return structpb.NewStruct(map[string]any{
		"real_profiles":      snap.RealProfiles,
		"synthetic_profiles": snap.SyntheticProfiles,
		"decisions":          snap.Decisions,
		"matches":            snap.Matches,
		"pending_reports":    snap.PendingReports,
	})
}

func reportFields(r *db.Report) map[string]any {
	out := map[string]any{
		"id":               r.ID,
		"reporter_user_id": r.ReporterUserID,
		"profile_id":       r.ProfileID,
		"reason":           r.Reason,
		"status":           r.Status,
		"created_at":       r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ActionTaken != "" {
		out["action_taken"] = r.ActionTaken
	}
	if r.AdminNotes != "" {
		out["admin_notes"] = r.AdminNotes
	}
	if r.ReviewedAt != nil {
		out["reviewed_at"] = r.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func grantFields(g *db.PremiumGrant) map[string]any {
	return map[string]any{
		"active":     true,
		"plan":       g.Plan,
		"starts_at":  g.StartsAt.UTC().Format(time.RFC3339),
		"expires_at": g.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func stringArg(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// intArg reads a whole number. ok is false when the field is absent.
func intArg(req *structpb.Struct, key string) (int, bool) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, false
	}
	return int(v.GetNumberValue()), true
}

func uintArg(req *structpb.Struct, key string) (uint64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, svcErr.InvalidArgument(key + " is required")
	}
	n := v.GetNumberValue()
	if n <= 0 || n != math.Trunc(n) || n > math.MaxInt64 {
		return 0, svcErr.InvalidArgument(fmt.Sprintf("%s must be a positive integer", key))
	}
	return uint64(n), nil
}
