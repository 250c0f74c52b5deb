package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw123456")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "pw123456" {
		t.Fatal("hash must not equal the plaintext password")
	}
	if !CheckPassword("pw123456", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPassword("wrong-password", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestCheckPasswordRejectsMalformedHash(t *testing.T) {
	if CheckPassword("pw123456", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash accepted")
	}
}
