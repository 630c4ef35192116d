package main

import (
	"log/slog"

	"mystiko/auth"
	"mystiko/repositories"
)

// seed bootstraps an empty store with the admin account and a few public
// rooms, mirroring what a fresh deployment expects to find. Existing data
// is never touched.
func seed(log *slog.Logger, accounts repositories.IAccountRepository, rooms repositories.IRoomRepository, adminPassword string) error {
	count, err := accounts.AccountCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	admin, err := accounts.CreateAccount("admin", hashed)
	if err != nil {
		return err
	}
	log.Info("Seeded admin account")

	defaults := []struct {
		name, description string
	}{
		{"General", "General chat for everyone"},
		{"Random", "Random discussions"},
		{"Tech", "Technology discussions"},
	}
	for _, room := range defaults {
		if _, err := rooms.CreateRoom(room.name, admin.Username, room.description, ""); err != nil {
			return err
		}
	}
	log.Info("Seeded default rooms", "count", len(defaults))
	return nil
}
