package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	BcryptCost = bcrypt.MinCost
	m.Run()
}

//bcrypt 正確密碼應通過；錯誤密碼應失敗。
func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("p@ss")
	if err != nil {
		t.Fatalf("hash err: %v", err)
	}
	if !CheckPasswordHash("p@ss", hashed) {
		t.Fatalf("should match")
	}
	if CheckPasswordHash("hahaha", hashed) {
		t.Fatalf("should not match")
	}
}

func TestJWTGenerateAndVerify(t *testing.T) {
	token, err := GenerateToken("a@b.com", 87, "organizer")
	if err != nil {
		t.Fatalf("gen token err: %v", err)
	}
	claims, err := VerifyToken(token)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if claims.UserID != 87 || claims.Role != "organizer" || claims.Email != "a@b.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTRejectsGarbageAndExpired(t *testing.T) {
	if _, err := VerifyToken("this-is-not-a-jwt"); err == nil {
		t.Fatalf("garbage token should fail")
	}

	Configure("", time.Nanosecond)
	defer Configure("", 2*time.Hour)
	token, err := GenerateToken("a@b.com", 1, "user")
	if err != nil {
		t.Fatalf("gen token err: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := VerifyToken(token); err == nil {
		t.Fatalf("expired token should fail")
	}
}

func TestJWTRejectsOtherSecret(t *testing.T) {
	token, err := GenerateToken("a@b.com", 1, "user")
	if err != nil {
		t.Fatalf("gen token err: %v", err)
	}
	Configure("another-secret", 0)
	defer Configure("supersecret", 0)
	if _, err := VerifyToken(token); err == nil {
		t.Fatalf("token signed with a different key should fail")
	}
}

func TestCacheInvalidatorPurgesByNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	for _, k := range []string{
		CacheEventsList + "abc",
		CacheEventsItem + "e-1:abc",
		CacheEventsItem + "e-2:abc",
		CacheOrgsItem + "7:abc",
	} {
		if err := rdb.Set(ctx, k, "x", 0).Err(); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	inv := NewCacheInvalidator(rdb)
	inv.PurgeEventsList(ctx)
	inv.PurgeEventItem(ctx, "e-1")

	if mr.Exists(CacheEventsList + "abc") {
		t.Fatalf("list key should be purged")
	}
	if mr.Exists(CacheEventsItem + "e-1:abc") {
		t.Fatalf("item e-1 should be purged")
	}
	if !mr.Exists(CacheEventsItem + "e-2:abc") {
		t.Fatalf("item e-2 should survive")
	}
	if !mr.Exists(CacheOrgsItem + "7:abc") {
		t.Fatalf("org key should survive")
	}
}
