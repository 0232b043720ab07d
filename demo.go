package main

import (
	"context"
	"fmt"
)

const (
	demoUserName  = "Demo User"
	demoUserEmail = "demo@citytracks.local"
)

// seedDemoUser inserts a placeholder account when demo mode is on. The empty
// password hash never matches a bcrypt comparison, so the account cannot be
// logged into; it only gives seed data an owner. Runs once at startup, not
// on first request.
func seedDemoUser(ctx context.Context, st store) error {
	existing, err := st.UserByEmail(ctx, demoUserEmail)
	if err != nil {
		return fmt.Errorf("error UserByEmail at demo seed: %w", err)
	}
	if existing != nil {
		return nil
	}
	if _, err := st.InsertUser(ctx, demoUserName, demoUserEmail, ""); err != nil {
		if err == errEmailTaken {
			return nil
		}
		return fmt.Errorf("error InsertUser at demo seed: %w", err)
	}
	return nil
}
