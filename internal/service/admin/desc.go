package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "matchbot.admin.v1.AdminService"

// Method names.
const (
	MethodListReports        = "ListReports"
	MethodReviewReport       = "ReviewReport"
	MethodReferralStats      = "ReferralStats"
	MethodPremiumStatus      = "PremiumStatus"
	MethodGrantPremium       = "GrantPremium"
	MethodMarkSynthetic      = "MarkSynthetic"
	MethodSetSyntheticActive = "SetSyntheticActive"
	MethodPendingLikeCount   = "PendingLikeCount"
	MethodStats              = "Stats"
)

// AdminServer is the operator API. Messages are protobuf well-known types
// so no generated code is needed on either side.
type AdminServer interface {
	ListReports(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReviewReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReferralStats(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	PremiumStatus(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	GrantPremium(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkSynthetic(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SetSyntheticActive(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	PendingLikeCount(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary adapts a typed handler to grpc.MethodDesc, running it through the
// server's interceptor chain.
func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(AdminServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AdminServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(Req))
			})
		},
	}
}

func newStruct() *structpb.Struct        { return new(structpb.Struct) }
func newUInt64() *wrapperspb.UInt64Value { return new(wrapperspb.UInt64Value) }
func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }

// ServiceDesc describes AdminService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListReports, newStruct, AdminServer.ListReports),
		unary(MethodReviewReport, newStruct, AdminServer.ReviewReport),
		unary(MethodReferralStats, newUInt64, AdminServer.ReferralStats),
		unary(MethodPremiumStatus, newUInt64, AdminServer.PremiumStatus),
		unary(MethodGrantPremium, newStruct, AdminServer.GrantPremium),
		unary(MethodMarkSynthetic, newStruct, AdminServer.MarkSynthetic),
		unary(MethodSetSyntheticActive, newStruct, AdminServer.SetSyntheticActive),
		unary(MethodPendingLikeCount, newUInt64, AdminServer.PendingLikeCount),
		unary(MethodStats, newEmpty, AdminServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbot/admin/v1/admin.proto",
}

// RegisterAdminServer attaches an implementation to a gRPC server.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}
