package store

import (
	"testing"
	"time"
)

func TestUserCreateAndLookup(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.Create("alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := us.GetByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("get by email = %+v, want %s", got, u.ID)
	}

	if _, err := us.Create("alice@example.com", "hash2"); err == nil {
		t.Error("expected error for duplicate email")
	}

	if err := us.SetPassword(u.ID, "newhash"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	got, _ = us.GetByID(u.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("hash = %q, want newhash", got.PasswordHash)
	}

	missing, err := us.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestProfileGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	us, ps := NewUserStore(db), NewProfileStore(db)
	u, _ := us.Create("mario@example.com", "hash")

	p, err := ps.GetOrCreate(u.ID, u.Email)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if p.Role != "user" || p.Email != u.Email {
		t.Errorf("profile = %+v", p)
	}

	if _, err := ps.Update(u.ID, strPtr("Mario"), strPtr("Rossi")); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, err = ps.GetOrCreate(u.ID, u.Email)
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if p.DisplayName() != "Mario Rossi" {
		t.Errorf("display name = %q, want Mario Rossi", p.DisplayName())
	}

	if err := ps.SetAvatarURL(u.ID, "http://x/avatars/a.jpg"); err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	p, _ = ps.GetByID(u.ID)
	if p.AvatarURL == nil || *p.AvatarURL != "http://x/avatars/a.jpg" {
		t.Errorf("avatar = %v", p.AvatarURL)
	}
}

func TestProfileListOrder(t *testing.T) {
	db := openTestDB(t)
	us, ps := NewUserStore(db), NewProfileStore(db)
	for _, n := range []struct{ email, name string }{
		{"z@example.com", "Zeno"},
		{"a@example.com", "anna"},
		{"b@example.com", "Bruno"},
	} {
		u, _ := us.Create(n.email, "h")
		ps.Create(u.ID, u.Email, "")
		ps.Update(u.ID, strPtr(n.name), nil)
	}

	list, err := ps.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"anna", "Bruno", "Zeno"}
	for i, name := range want {
		if list[i].DisplayName() != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].DisplayName(), name)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ss := NewSessionStore(db, time.Hour)
	u, _ := us.Create("alice@example.com", "hash")

	sess, err := ss.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != u.ID {
		t.Fatalf("session = %+v", got)
	}

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ss.GetByToken(sess.Token); got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionExpired(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ss := NewSessionStore(db, 0)
	u, _ := us.Create("alice@example.com", "hash")

	live, _ := ss.Create(u.ID)
	if _, err := db.Exec(
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		"expired", u.ID, utc(time.Now().Add(-time.Hour)),
	); err != nil {
		t.Fatalf("insert expired: %v", err)
	}

	if got, _ := ss.GetByToken("expired"); got != nil {
		t.Error("expected expired session to be hidden")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if got, _ := ss.GetByToken(live.Token); got == nil {
		t.Error("live session removed")
	}

	if err := ss.DeleteByUserID(u.ID); err != nil {
		t.Fatalf("delete by user: %v", err)
	}
	if got, _ := ss.GetByToken(live.Token); got != nil {
		t.Error("expected no sessions after DeleteByUserID")
	}
}
