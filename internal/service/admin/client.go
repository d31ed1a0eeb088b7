package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls AdminService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// BearerToken attaches "authorization: Bearer <token>" to every call.
type BearerToken string

func (t BearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(t)}, nil
}

// RequireTransportSecurity is false so the CLI can reach a plaintext
// listener on localhost.
func (BearerToken) RequireTransportSecurity() bool { return false }

func (c *Client) ListReports(ctx context.Context, status, pageToken string, limit int) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"status": status, "page_token": pageToken, "limit": limit})
	if err != nil {
		return nil, err
	}
	return invoke(ctx, c.cc, MethodListReports, req, new(structpb.Struct))
}

func (c *Client) ReviewReport(ctx context.Context, id uint64, action, notes string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"id": id, "action": action, "notes": notes})
	if err != nil {
		return nil, err
	}
	return invoke(ctx, c.cc, MethodReviewReport, req, new(structpb.Struct))
}

func (c *Client) ReferralStats(ctx context.Context, userID uint64) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, MethodReferralStats, wrapperspb.UInt64(userID), new(structpb.Struct))
}

func (c *Client) PremiumStatus(ctx context.Context, userID uint64) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, MethodPremiumStatus, wrapperspb.UInt64(userID), new(structpb.Struct))
}

func (c *Client) GrantPremium(ctx context.Context, userID uint64, days int, ref string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"user_id": userID, "days": days, "ref": ref})
	if err != nil {
		return nil, err
	}
	return invoke(ctx, c.cc, MethodGrantPremium, req, new(structpb.Struct))
}

func (c *Client) MarkSynthetic(ctx context.Context, profileID uint64, likeInterval int, active bool) error {
	req, err := structpb.NewStruct(map[string]any{"profile_id": profileID, "like_interval": likeInterval, "active": active})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod(MethodMarkSynthetic), req, new(emptypb.Empty))
}

func (c *Client) SetSyntheticActive(ctx context.Context, profileID uint64, active bool) error {
	req, err := structpb.NewStruct(map[string]any{"profile_id": profileID, "active": active})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod(MethodSetSyntheticActive), req, new(emptypb.Empty))
}

func (c *Client) PendingLikeCount(ctx context.Context, profileID uint64) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, fullMethod(MethodPendingLikeCount), wrapperspb.UInt64(profileID), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) Stats(ctx context.Context) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, MethodStats, &emptypb.Empty{}, new(structpb.Struct))
}

func invoke[T proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, req proto.Message, out T) (T, error) {
	if err := cc.Invoke(ctx, fullMethod(method), req, out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
