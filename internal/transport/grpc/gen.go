// Package transportgrpc hosts the gRPC surface of the service. The authv1
// package is generated from api/proto/auth/v1/auth.proto; run go generate
// before building after editing the proto.
package transportgrpc

//go:generate protoc --proto_path=../../../api/proto --go_out=authv1 --go_opt=paths=source_relative --go-grpc_out=authv1 --go-grpc_opt=paths=source_relative auth/v1/auth.proto
