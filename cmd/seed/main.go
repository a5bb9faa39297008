package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
	"github.com/hackgods/booking-lifecycle/internal/auth"
	"github.com/hackgods/booking-lifecycle/internal/bootstrap"
	"github.com/hackgods/booking-lifecycle/internal/config"
)

var services = []string{
	"Manicure",
	"Pedicure",
	"Haircut",
	"Beard trim",
	"Massage",
	"Eyebrow design",
	"Hair coloring",
	"Facial cleansing",
}

var notes = []string{
	"First visit",
	"Allergic to acetone",
	"Prefers a quiet room",
	"May arrive a few minutes late",
	"Same as last time",
}

var comments = []string{
	"Great service, will come back",
	"On time and very careful",
	"Good, but the wait was long",
	"Loved the result",
	"Not what I asked for",
}

// seedUser is what the simulator reads back from the tokens file.
type seedUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	professionals := getInt("SEED_PROFESSIONALS", 10)
	clients := getInt("SEED_CLIENTS", 200)
	history := getInt("SEED_HISTORY", 400)
	tokensPath := getEnv("SEED_TOKENS_FILE", "seed-tokens.json")

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store connection error: %v", err)
	}
	defer store.Close()

	svc := appointment.NewService(store.Repo, nil, nil, cfg)
	gofakeit.Seed(time.Now().UnixNano())

	pros, err := seedUsers(ctx, svc, appointment.RoleProfessional, professionals)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	cls, err := seedUsers(ctx, svc, appointment.RoleClient, clients)
	if err != nil {
		log.Fatalf("seed clients: %v", err)
	}

	if err := seedHistory(ctx, svc, pros, cls, history); err != nil {
		log.Fatalf("seed history: %v", err)
	}

	if err := writeTokens(tokensPath, cfg.JWTSecret, append(pros, cls...)); err != nil {
		log.Fatalf("write tokens: %v", err)
	}

	log.Printf("seed complete tokens=%s", tokensPath)
}

func seedUsers(ctx context.Context, svc *appointment.Service, role appointment.Role, count int) ([]*appointment.User, error) {
	log.Printf("seeding %d %ss", count, role)

	out := make([]*appointment.User, 0, count)
	for len(out) < count {
		photo := "https://i.pravatar.cc/300?u=" + gofakeit.UUID()
		phone := gofakeit.Phone()
		city := gofakeit.City()
		state := gofakeit.StateAbr()

		u, err := svc.CreateUser(ctx, appointment.User{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Photo: &photo,
			Phone: &phone,
			City:  &city,
			State: &state,
			Role:  role,
		})
		if errors.Is(err, appointment.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// seedHistory books random slots over the last year and the next month and
// walks them through the lifecycle so stats and feedback have data.
func seedHistory(ctx context.Context, svc *appointment.Service, pros, clients []*appointment.User, count int) error {
	if len(pros) == 0 || len(clients) == 0 {
		return nil
	}
	log.Printf("seeding %d appointments", count)

	now := time.Now().Truncate(time.Hour)
	var created, conflicts, rated int

	for i := 0; i < count; i++ {
		pro := pros[gofakeit.Number(0, len(pros)-1)]
		client := clients[gofakeit.Number(0, len(clients)-1)]
		at := now.Add(time.Duration(gofakeit.Number(-365*24, 30*24)) * time.Hour)

		var note *string
		if gofakeit.Bool() {
			n := gofakeit.RandomString(notes)
			note = &n
		}

		clientReq := appointment.Requester{ID: client.ID, Role: appointment.RoleClient}
		proReq := appointment.Requester{ID: pro.ID, Role: appointment.RoleProfessional}

		d, err := svc.CreateAppointment(ctx, clientReq, appointment.CreateInput{
			ProfessionalID: pro.ID,
			ScheduledTime:  at,
			Service:        gofakeit.RandomString(services),
			Notes:          note,
		})
		if errors.Is(err, appointment.ErrSlotTaken) {
			conflicts++
			continue
		}
		if err != nil {
			return err
		}
		created++

		for _, next := range pathFor(at.Before(now)) {
			if _, err := svc.UpdateStatus(ctx, proReq, d.ID, next); err != nil {
				return err
			}
		}

		final, err := svc.GetAppointment(ctx, clientReq, d.ID)
		if err != nil {
			return err
		}
		if final.Status != appointment.StatusCompleted || gofakeit.Number(0, 2) == 0 {
			continue
		}

		var comment *string
		if gofakeit.Bool() {
			c := gofakeit.RandomString(comments)
			comment = &c
		}
		if _, err := svc.SubmitFeedback(ctx, clientReq, appointment.FeedbackInput{
			AppointmentID: d.ID,
			Rating:        gofakeit.Number(1, 5),
			Comment:       comment,
		}); err != nil {
			return err
		}
		rated++
	}

	log.Printf("appointments seeded created=%d conflicts=%d rated=%d", created, conflicts, rated)
	return nil
}

// pathFor picks a plausible sequence of transitions out of pending.
func pathFor(past bool) []appointment.Status {
	if past {
		switch gofakeit.Number(0, 9) {
		case 0:
			return []appointment.Status{appointment.StatusDeclined}
		case 1:
			return []appointment.Status{appointment.StatusConfirmed, appointment.StatusCancelled}
		case 2, 3:
			return []appointment.Status{appointment.StatusConfirmed, appointment.StatusInProgress, appointment.StatusCompleted}
		default:
			return []appointment.Status{appointment.StatusConfirmed, appointment.StatusCompleted}
		}
	}
	if gofakeit.Bool() {
		return []appointment.Status{appointment.StatusConfirmed}
	}
	return nil
}

func writeTokens(path, secret string, users []*appointment.User) error {
	out := make([]seedUser, 0, len(users))
	for _, u := range users {
		tok, err := auth.MakeToken(u.ID, u.Role, secret, 7*auth.DefaultTTL)
		if err != nil {
			return err
		}
		out = append(out, seedUser{ID: u.ID.String(), Name: u.Name, Role: u.Role.String(), Token: tok})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
