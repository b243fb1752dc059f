package service

import (
	"testing"

	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/glucobite/glucobite-api/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(repo *testutil.MockUserRepo) *UserService {
	cfg := &config.Config{}
	cfg.EnvVars.JwtSecretKey = "test-secret"
	return &UserService{
		Cfg:  cfg,
		Repo: repo,
	}
}

func TestCreateUser_Success(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	svc := newTestUserService(repo)

	user, err := svc.CreateUser("testuser", "Test", "test@example.com", "Password1!")
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if user == nil {
		t.Fatal("CreateUser returned nil user")
	}
	if user.Username != "testuser" {
		t.Errorf("Username = %q, want 'testuser'", user.Username)
	}
	if user.Auth == nil {
		t.Fatal("Auth should not be nil")
	}
	if user.Auth.AuthType != models.Standard {
		t.Errorf("AuthType = %q, want 'standard'", user.Auth.AuthType)
	}
	// Verify password was hashed
	err = bcrypt.CompareHashAndPassword([]byte(user.Auth.HashedPassword), []byte("Password1!"))
	if err != nil {
		t.Error("Password was not correctly hashed")
	}
	// Verify default settings
	if user.Settings == nil || user.Settings.DailyCarbTargetGrams != 200 {
		t.Error("Default DailyCarbTargetGrams should be 200")
	}
	if user.Settings != nil && !user.Settings.KeepScreenAwake {
		t.Error("Default KeepScreenAwake should be true")
	}
}

func TestCreateUser_RepoError(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	repo.CreateUserErr = errTest
	svc := newTestUserService(repo)

	_, err := svc.CreateUser("testuser", "Test", "test@example.com", "Password1!")
	if err == nil {
		t.Fatal("CreateUser should return error when repo fails")
	}
}

func TestLoginUser(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	svc := newTestUserService(repo)

	if _, err := svc.CreateUser("testuser", "Test", "test@example.com", "Password1!"); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	user, err := svc.LoginUser("testuser", "Password1!")
	if err != nil {
		t.Fatalf("LoginUser error: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("Username = %q", user.Username)
	}

	if _, err := svc.LoginUser("testuser", "wrong"); err == nil {
		t.Error("LoginUser should fail with wrong password")
	}
	if _, err := svc.LoginUser("nobody", "Password1!"); err == nil {
		t.Error("LoginUser should fail for unknown user")
	}
}

func TestValidateUsername(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	svc := newTestUserService(repo)

	if err := svc.ValidateUsername("gooduser42"); err != nil {
		t.Errorf("ValidateUsername(gooduser42) = %v", err)
	}
	if err := svc.ValidateUsername("ab"); err == nil {
		t.Error("too-short username should be rejected")
	}
	if err := svc.ValidateUsername("has spaces"); err == nil {
		t.Error("non-alphanumeric username should be rejected")
	}
	if err := svc.ValidateUsername("admin"); err == nil {
		t.Error("forbidden username should be rejected")
	}

	// Taken username
	if _, err := svc.CreateUser("taken", "T", "taken@example.com", "Password1!"); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if err := svc.ValidateUsername("taken"); err == nil {
		t.Error("existing username should be rejected")
	}
}

func TestValidatePassword(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	svc := newTestUserService(repo)

	cases := []struct {
		password string
		valid    bool
	}{
		{"Password1!", true},
		{"short1!A", true},
		{"sh1!A", false},         // too short
		{"password1!", false},    // no uppercase
		{"PASSWORD1!", false},    // no lowercase
		{"Password!!", false},    // no digit
		{"Password11", false},    // no special char
	}
	for _, tc := range cases {
		err := svc.ValidatePassword(tc.password)
		if tc.valid && err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", tc.password, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidatePassword(%q) = nil, want error", tc.password)
		}
	}
}

func TestUpdateSettings(t *testing.T) {
	repo := testutil.NewMockUserRepo()
	svc := newTestUserService(repo)

	user, err := svc.CreateUser("testuser", "Test", "test@example.com", "Password1!")
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	err = svc.UpdateSettings(user, &models.UserSettings{
		DailyCarbTargetGrams: 150,
		InsulinToCarbRatio:   10,
		KeepScreenAwake:      false,
	})
	if err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}

	got, err := svc.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if got.Settings.DailyCarbTargetGrams != 150 {
		t.Errorf("DailyCarbTargetGrams = %v, want 150", got.Settings.DailyCarbTargetGrams)
	}

	if err := svc.UpdateSettings(user, &models.UserSettings{DailyCarbTargetGrams: -1}); err == nil {
		t.Error("negative carb target should be rejected")
	}
}

func TestToUserResponse(t *testing.T) {
	user := testutil.TestUser()
	resp := ToUserResponse(user)

	if resp.ID != "1" {
		t.Errorf("ID = %q, want '1'", resp.ID)
	}
	if resp.Username != "testuser" {
		t.Errorf("Username = %q", resp.Username)
	}
	if resp.Settings.DailyCarbTargetGrams != 200 {
		t.Errorf("DailyCarbTargetGrams = %v, want 200", resp.Settings.DailyCarbTargetGrams)
	}
}

// errTest is a shared test error for convenience.
var errTest = errTestType{}

type errTestType struct{}

func (e errTestType) Error() string { return "test error" }
