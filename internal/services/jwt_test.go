package services_test

import (
	"testing"

	"chatsino/internal/models"
	"chatsino/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	jwtService := services.NewJWTService("secret")
	client := models.ClientIdentity{ID: 42, Username: "alice", PermissionLevel: models.PermissionAdminLimited}

	token, err := jwtService.GenerateToken(client)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	id, _ := claims.ClientID()
	if id != 42 || claims.Username != "alice" || claims.PermissionLevel != models.PermissionAdminLimited {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := services.NewJWTService("other").ValidateToken(token); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
	if _, err := jwtService.ValidateToken("garbage"); err == nil {
		t.Error("garbage token should be rejected")
	}
}
