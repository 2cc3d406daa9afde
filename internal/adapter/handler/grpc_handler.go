package handler

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const CheckoutFullMethod = "/storefront.CheckoutService/Checkout"

type CheckoutRequest struct {
	UserID          string `json:"user_id"`
	ShippingAddress string `json:"shipping_address"`
	IdempotencyKey  string `json:"idempotency_key"`
}

type CheckoutResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	OrderID     string                 `json:"order_id,omitempty"`
	OrderNumber string                 `json:"order_number,omitempty"`
	TotalAmount decimal.Decimal        `json:"total_amount"`
	Conflicts   []domain.StockConflict `json:"conflicts,omitempty"`
}

type CheckoutServer interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
}

var checkoutServiceDesc = grpc.ServiceDesc{
	ServiceName: "storefront.CheckoutService",
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Checkout", Handler: checkoutHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&checkoutServiceDesc, srv)
}

func checkoutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).Checkout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckoutFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).Checkout(ctx, req.(*CheckoutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CheckoutClient calls the checkout RPC using the JSON codec.
type CheckoutClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutClient(cc grpc.ClientConnInterface) *CheckoutClient {
	return &CheckoutClient{cc: cc}
}

func (c *CheckoutClient) Checkout(ctx context.Context, req *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, CheckoutFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	checkout *service.CheckoutService
}

func NewGRPCHandler(checkout *service.CheckoutService) *GRPCHandler {
	return &GRPCHandler{checkout: checkout}
}

// Checkout reports business rejections in the response body and reserves
// gRPC status errors for bad input and infrastructure failures.
func (h *GRPCHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	receipt, err := h.checkout.Checkout(ctx, service.CheckoutRequest{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		var stockErr *domain.StockError
		switch {
		case errors.As(err, &stockErr):
			return &CheckoutResponse{Success: false, Message: "insufficient stock", Conflicts: stockErr.Conflicts}, nil
		case errors.Is(err, service.ErrDuplicateRequest):
			return &CheckoutResponse{Success: false, Message: "duplicate request"}, nil
		case errors.Is(err, domain.ErrEmptyCart):
			return &CheckoutResponse{Success: false, Message: "cart is empty"}, nil
		case errors.Is(err, domain.ErrNotFound):
			return &CheckoutResponse{Success: false, Message: err.Error()}, nil
		case errors.Is(err, domain.ErrPersistence):
			return nil, status.Error(codes.Unavailable, "storage unavailable")
		default:
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	return &CheckoutResponse{
		Success:     true,
		Message:     "order placed successfully",
		OrderID:     receipt.OrderID,
		OrderNumber: receipt.OrderNumber,
		TotalAmount: receipt.TotalAmount,
	}, nil
}

// UnaryLoggingInterceptor logs every RPC with its status code and latency.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logger.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Info("rpc", fields...)
		case codes.Internal, codes.Unavailable, codes.Unknown:
			logger.Error("rpc", append(fields, zap.Error(err))...)
		default:
			logger.Warn("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
