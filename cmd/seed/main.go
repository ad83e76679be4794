// seed inserts development users for local testing and prints a session token for the first one.
// Idempotent: existing users are reused. Run go run ./cmd/migrate first.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"sessionguard/internal/bootstrap"
	"sessionguard/internal/clock"
	"sessionguard/internal/config"
	userdomain "sessionguard/internal/user/domain"
	userrepo "sessionguard/internal/user/repository"
)

var devUsernames = []string{"dev", "member"}

const devDeviceID = "dev-laptop"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SessionBackend == config.BackendMemory {
		log.Fatal("seed: SESSION_BACKEND=memory does not persist; use postgres or redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	defer stores.Close()

	var ids []string
	for _, name := range devUsernames {
		id, err := ensureUser(ctx, stores.Users, name)
		if err != nil {
			log.Fatalf("seed user %s: %v", name, err)
		}
		ids = append(ids, id)
	}

	clk := clock.System()
	sessions := bootstrap.NewSessionStore(cfg, stores, clk)
	gate := bootstrap.NewGate(cfg, stores, sessions, clk, nil)
	sess, err := gate.IssueSession(ctx, ids[0], devDeviceID)
	if err != nil {
		log.Fatalf("seed session: %v", err)
	}
	fmt.Printf("user_id=%s device_id=%s expires=%s\n", sess.UserID, sess.DeviceID, sess.ExpirationDate.Format(time.RFC3339))
	fmt.Printf("token=%s\n", sess.Token)
}

func ensureUser(ctx context.Context, users userrepo.Repository, username string) (string, error) {
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:        uuid.New().String(),
		Username:  username,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := users.Create(ctx, u)
	if err == nil {
		log.Printf("seed: created user %s (%s)", username, u.ID)
		return u.ID, nil
	}
	if !errors.Is(err, userrepo.ErrAlreadyExists) {
		return "", err
	}
	existing, err := users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", fmt.Errorf("user %s reported as existing but not found", username)
	}
	log.Printf("seed: user %s already exists (%s)", username, existing.ID)
	return existing.ID, nil
}
