package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// Identity is the authenticated chat identity carried in token claims.
type Identity struct {
	UID  string
	Role string // "CUSTOMER" or "AGENT"
	Shop string // agents carry their shop id in claims
}

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyIdentity verifies the token and extracts the chat identity from its
// custom claims. A token without a role claim is a customer.
func (f *FirebaseAuthClient) VerifyIdentity(ctx context.Context, token string) (*Identity, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	identity := &Identity{UID: result.UID, Role: "CUSTOMER"}
	if role, ok := result.Claims["role"].(string); ok && role != "" {
		identity.Role = role
	}
	if shop, ok := result.Claims["shop"].(string); ok {
		identity.Shop = shop
	}
	return identity, nil
}

// TestConnection probes the Auth backend with a lookup. A user-not-found
// answer still proves the connection works.
func (f *FirebaseAuthClient) TestConnection(ctx context.Context) error {
	_, err := f.client.GetUser(ctx, "health-check-probe")
	if err != nil && auth.IsUserNotFound(err) {
		return nil
	}
	return err
}
