package main

import (
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/himmelstrup/timepush/internal/config"
	"github.com/himmelstrup/timepush/internal/database"
	"github.com/himmelstrup/timepush/internal/logging"
	"github.com/himmelstrup/timepush/internal/reminder"
	"github.com/himmelstrup/timepush/internal/store"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type userInput struct {
	Name  string
	Email string
}

func (in *userInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.Length(1, 255),
		),
		validation.Field(&in.Email,
			validation.Match(emailRegex).Error("must be a valid email address"),
			validation.Length(0, 255),
		),
	)
}

func openUserStore() (*store.UserStore, *sql.DB, error) {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewUserStore(db), db, nil
}

func runUserAdd(out io.Writer, name, email string) error {
	in := userInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := in.Validate(); err != nil {
		return err
	}

	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := users.Create(in.Name, in.Email)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, u.ID)
	return err
}

func runUserSetActive(out io.Writer, id string, active bool) error {
	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := users.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %s", reminder.ErrUserNotFound, id)
	}
	if err := users.SetActive(id, active); err != nil {
		return err
	}

	state := "inactive"
	if active {
		state = "active"
	}
	_, err = fmt.Fprintf(out, "%s (%s) is now %s\n", u.Name, u.ID, state)
	return err
}

func runUserDelete(out io.Writer, id string) error {
	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := users.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", reminder.ErrUserNotFound, id)
	}
	_, err = fmt.Fprintf(out, "deleted %s\n", id)
	return err
}
