package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingInterceptorUnaryDelegatesToHandler(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	interceptor := NewTracingInterceptor(TracingOptions{TracerProvider: tp}).Unary()

	info := &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Authenticate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected unary handler error: %v", err)
	}
}

func TestTracingInterceptorStreamDelegatesToHandler(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	interceptor := NewTracingInterceptor(TracingOptions{TracerProvider: tp}).Stream()

	info := &grpc.StreamServerInfo{FullMethod: "/auth.v1.AuthService/Watch", IsServerStream: true}

	handler := func(srv interface{}, stream grpc.ServerStream) error {
		return status.Error(codes.OK, "")
	}

	stream := &stubServerStream{ctx: context.Background()}
	if err := interceptor(nil, stream, info, handler); status.Code(err) != codes.OK {
		t.Fatalf("expected status OK, got %v", err)
	}
}

func TestTracingInterceptorNilPassesThrough(t *testing.T) {
	var ti *TracingInterceptor

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}
	resp, err := ti.Unary()(context.Background(), struct{}{}, &grpc.UnaryServerInfo{}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("nil interceptor did not delegate: resp=%v err=%v", resp, err)
	}
}

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context {
	return s.ctx
}
