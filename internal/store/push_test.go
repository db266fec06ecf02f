package store

import "testing"

func setupPushTest(t *testing.T) (*PushStore, *AdminStore, int64, int64) {
	t.Helper()
	db := setupTestDB(t)
	us := NewUserStore(db)
	admin, err := us.Create("admin@example.com", "hash")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	visitor, err := us.Create("visitor@example.com", "hash")
	if err != nil {
		t.Fatalf("create visitor: %v", err)
	}
	as := NewAdminStore(db)
	if err := as.Grant(admin.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	return NewPushStore(db), as, admin.ID, visitor.ID
}

func TestPushSubscribeUpsert(t *testing.T) {
	ps, _, adminID, _ := setupPushTest(t)

	sub, err := ps.Subscribe(adminID, "https://push.example.com/sub1", "p256dh", "auth", "Laptop")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.DeviceName != "Laptop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Laptop")
	}

	again, err := ps.Subscribe(adminID, "https://push.example.com/sub1", "p256dh2", "auth2", "Phone")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("id = %d, want %d", again.ID, sub.ID)
	}
	if again.P256dhKey != "p256dh2" || again.DeviceName != "Phone" {
		t.Errorf("upsert did not refresh keys: %+v", again)
	}

	subs, _ := ps.ListByUser(adminID)
	if len(subs) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(subs))
	}
}

func TestPushListAdmin(t *testing.T) {
	ps, as, adminID, visitorID := setupPushTest(t)

	if _, err := ps.Subscribe(adminID, "https://push.example.com/a", "k", "a", ""); err != nil {
		t.Fatalf("subscribe admin: %v", err)
	}
	if _, err := ps.Subscribe(visitorID, "https://push.example.com/v", "k", "a", ""); err != nil {
		t.Fatalf("subscribe visitor: %v", err)
	}

	subs, err := ps.ListAdmin()
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != adminID {
		t.Errorf("admin subscriptions = %+v, want only the admin's", subs)
	}

	if err := as.Revoke(adminID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	subs, _ = ps.ListAdmin()
	if len(subs) != 0 {
		t.Errorf("admin subscriptions after revoke = %d, want 0", len(subs))
	}
}

func TestPushDelete(t *testing.T) {
	ps, _, adminID, visitorID := setupPushTest(t)

	sub, _ := ps.Subscribe(adminID, "https://push.example.com/a", "k", "a", "")

	ok, err := ps.Delete(sub.ID, visitorID)
	if err != nil {
		t.Fatalf("delete as other user: %v", err)
	}
	if ok {
		t.Error("another user must not delete the subscription")
	}

	ok, err = ps.Delete(sub.ID, adminID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v; want true", ok, err)
	}

	sub, _ = ps.Subscribe(adminID, "https://push.example.com/b", "k", "a", "")
	if err := ps.DeleteByEndpoint(sub.Endpoint); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ := ps.ListByUser(adminID)
	if len(subs) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(subs))
	}
}
