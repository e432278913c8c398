package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"school-service/internal/models"
)

const bulkUsersMethod = "/school.directory.v1.Directory/BulkUsers"

type BulkUsersRequest struct {
	IDs []string `json:"ids"`
}

type BulkUsersResponse struct {
	Users []models.UserProfile `json:"users"`
}

// UserClient wraps the directory service gRPC client.
type UserClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// Dial opens a traced, insecure connection to the directory service.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

// NewUserClient constructs the wrapper. A zero timeout leaves deadlines to the caller.
func NewUserClient(conn grpc.ClientConnInterface, timeout time.Duration) *UserClient {
	return &UserClient{conn: conn, timeout: timeout}
}

// BulkUsers fetches multiple user profiles in one call.
func (u *UserClient) BulkUsers(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return []models.UserProfile{}, nil
	}
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	req, err := toStruct(BulkUsersRequest{IDs: ids})
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := u.conn.Invoke(ctx, bulkUsersMethod, req, out); err != nil {
		return nil, err
	}

	var resp BulkUsersResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		resp.Users = []models.UserProfile{}
	}
	return resp.Users, nil
}
