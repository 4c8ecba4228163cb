package expiry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
	tokenrepo "github.com/TheCyberMayor/PowerPay/internal/token/repository"
)

func TestSweepExpiresOnlyStaleGenerated(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&tokendomain.Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	seed := func(code string, status tokendomain.TokenStatus, expiresAt time.Time) {
		t.Helper()
		token := &tokendomain.Token{
			ID:        node.Generate(),
			TokenCode: code,
			PaymentID: node.Generate(),
			MeterID:   node.Generate(),
			Amount:    5000_00,
			Units:     38789,
			Status:    status,
			ExpiresAt: expiresAt,
		}
		if err := db.Create(token).Error; err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}

	stale := strings.Repeat("1", 20)
	fresh := strings.Repeat("2", 20)
	used := strings.Repeat("3", 20)
	seed(stale, tokendomain.TokenStatusGenerated, now.Add(-time.Hour))
	seed(fresh, tokendomain.TokenStatusGenerated, now.Add(time.Hour))
	seed(used, tokendomain.TokenStatusUsed, now.Add(-time.Hour))

	worker := NewWorker(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  tokenrepo.Provide(),
		Clock: clock.Fixed(now),
	})

	expired, err := worker.sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired token, got %d", expired)
	}

	status := func(code string) tokendomain.TokenStatus {
		t.Helper()
		var token tokendomain.Token
		if err := db.Where("token_code = ?", code).First(&token).Error; err != nil {
			t.Fatalf("load token %q: %v", code, err)
		}
		return token.Status
	}
	if got := status(stale); got != tokendomain.TokenStatusExpired {
		t.Fatalf("stale token: expected expired, got %s", got)
	}
	if got := status(fresh); got != tokendomain.TokenStatusGenerated {
		t.Fatalf("fresh token: expected generated, got %s", got)
	}
	if got := status(used); got != tokendomain.TokenStatusUsed {
		t.Fatalf("used token: expected used, got %s", got)
	}

	// A second sweep finds nothing left to expire.
	expired, err = worker.sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected clean sweep, got %d", expired)
	}
}
