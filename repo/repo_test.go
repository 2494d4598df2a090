package repo

import (
	"testing"
	"time"
)

func TestSeededUsers(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != 3 {
		t.Fatalf("expected 3 seeded users, got %d", r.Count())
	}

	john := r.Get(SeedJohnDoeID)
	if john == nil || john.Name != "John Doe" {
		t.Fatalf("John Doe seed missing: %+v", john)
	}
	if john.Role != RoleUser {
		t.Errorf("John role = %q, want %q", john.Role, RoleUser)
	}
	if jane := r.Get(SeedJaneSmithID); jane == nil || jane.Role != RoleAdmin {
		t.Errorf("Jane must be the seeded admin: %+v", jane)
	}
	if r.Get("no-such-id") != nil {
		t.Error("expected nil for unknown ID")
	}
}

func TestCreatedUsersGetUserRole(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}
	u, err := r.Create(CreateUserRequest{Email: "new@example.com", Password: "password123", Name: "New"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != RoleUser {
		t.Errorf("role = %q, want %q", u.Role, RoleUser)
	}
}

func TestSignInBcrypt(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}

	jane := r.SignIn("janesmith@example.com", SeedJaneSmithPassword)
	if jane == nil || jane.ID != SeedJaneSmithID {
		t.Fatalf("Jane should sign in: %+v", jane)
	}
	if r.SignIn("janesmith@example.com", "wrong") != nil {
		t.Error("wrong password must not sign in")
	}
	// John has no password at all.
	if r.SignIn("johndoe@example.com", "") != nil {
		t.Error("passwordless account must not sign in")
	}
	if r.SignIn("nobody@example.com", "x") != nil {
		t.Error("unknown email must not sign in")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}

	created, err := r.Create(CreateUserRequest{Email: "new@example.com", Password: "hunter2hunter2", Name: "New User"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("created user should have an ID")
	}
	if len(created.PasswordHash) == 0 {
		t.Error("password should be hashed")
	}
	if string(created.PasswordHash) == "hunter2hunter2" {
		t.Error("password must not be stored in clear")
	}

	if _, err := r.Create(CreateUserRequest{Email: "new@example.com", Name: "Clone"}); err == nil {
		t.Fatal("duplicate email must fail")
	}

	if r.SignIn("new@example.com", "hunter2hunter2") == nil {
		t.Error("created user should sign in with their password")
	}
}

func TestListUsersFilters(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}

	all := r.List(ListUsersFilter{Limit: 10})
	if len(all.Data) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all.Data))
	}

	byName := r.List(ListUsersFilter{Search: "jane", Limit: 10})
	if len(byName.Data) != 1 || byName.Data[0].ID != SeedJaneSmithID {
		t.Errorf("search filter: %+v", byName.Data)
	}

	byEmail := r.List(ListUsersFilter{Email: "ALICEJOHNSON@test.test", Limit: 10})
	if len(byEmail.Data) != 1 || byEmail.Data[0].ID != SeedAliceJohnsonID {
		t.Errorf("email filter should be case-insensitive: %+v", byEmail.Data)
	}

	future := time.Now().Add(time.Hour)
	none := r.List(ListUsersFilter{CreatedRangeStart: &future, Limit: 10})
	if len(none.Data) != 0 {
		t.Errorf("future created range should match nothing: %+v", none.Data)
	}
}

func TestListUsersPagination(t *testing.T) {
	r, err := NewUserRepo()
	if err != nil {
		t.Fatal(err)
	}

	first := r.List(ListUsersFilter{Limit: 2})
	if len(first.Data) != 2 || first.Limit != 2 || first.Offset != 0 {
		t.Fatalf("first page: %+v", first)
	}
	second := r.List(ListUsersFilter{Limit: 2, Offset: 2})
	if len(second.Data) != 1 || second.Offset != 2 {
		t.Fatalf("second page: %+v", second)
	}
	if first.Data[0].ID == second.Data[0].ID {
		t.Error("pages overlap")
	}
	beyond := r.List(ListUsersFilter{Limit: 2, Offset: 10})
	if len(beyond.Data) != 0 {
		t.Errorf("offset beyond end should be empty: %+v", beyond.Data)
	}
}

func TestMessageRepo(t *testing.T) {
	r := NewMessageRepo()

	m1 := r.Create("u1", "u2", "hello there")
	m2 := r.Create("u2", "u1", "hi back")
	r.Create("u3", "u4", "unrelated")

	if got := r.Get(m1.ID); got == nil || got.Message != "hello there" {
		t.Fatalf("Get: %+v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unknown message")
	}

	// userContext sees sent and received, nothing else.
	mine := r.List(ListMessagesFilter{UserContext: "u1", Limit: 10})
	if len(mine.Data) != 2 {
		t.Fatalf("u1 should see 2 messages, got %d", len(mine.Data))
	}

	from := r.List(ListMessagesFilter{From: "u2", Limit: 10})
	if len(from.Data) != 1 || from.Data[0].ID != m2.ID {
		t.Errorf("from filter: %+v", from.Data)
	}

	search := r.List(ListMessagesFilter{Search: "HELLO", Limit: 10})
	if len(search.Data) != 1 || search.Data[0].ID != m1.ID {
		t.Errorf("search should be case-insensitive: %+v", search.Data)
	}

	paged := r.List(ListMessagesFilter{Limit: 2, Offset: 2})
	if len(paged.Data) != 1 {
		t.Errorf("pagination: %+v", paged.Data)
	}
}
