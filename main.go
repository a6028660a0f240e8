package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/thriftauth/internal/config"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// App wires the store, mailer, and limiters behind the HTTP handlers. The
// clock is injectable so expiry and cooldown boundaries are testable.
type App struct {
	Store       Store
	Mailer      Mailer
	cfg         *cfg.Config
	rateLimiter *RateLimiter
	otpLimiter  *OTPLimiter
	now         func() time.Time
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	jwtSecret = []byte(c.JwtSecret)

	var store Store
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteStore(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		store = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}
		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Printf("migrations warning: %v", err)
		}
		p, err := NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		store = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		store = NewMemStore()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	var mailer Mailer
	if c.MailerMode == "smtp" {
		mailer = NewSMTPMailer(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.MailFrom)
	} else {
		log.Println("Using log mailer (OTP codes are printed, not sent)")
		mailer = LogMailer{}
	}

	app := &App{Store: store, Mailer: mailer, cfg: c, now: time.Now}

	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		app.otpLimiter = NewOTPLimiter(rdb, c.OTPIssueLimit, c.OTPResendCooldown)
		log.Println("OTP issue throttle enabled via Redis")
	}

	r := app.Router()

	srv := &http.Server{Handler: r, Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		fmt.Println("Starting server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.Store.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	fmt.Println("Server exited properly")
}

// Router assembles the full HTTP surface. Paths mirror the frontend contract.
func (a *App) Router() *mux.Router {
	if a.rateLimiter == nil {
		a.rateLimiter = NewRateLimiter(120)
	}

	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.Logging)
	r.Use(a.CORS)

	// Health check endpoints (no auth, no rate limit)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := a.Store.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.RateLimit)

	api.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "Project Thrift API", map[string]string{
			"auth":      "/api/auth",
			"brandAuth": "/api/brand-auth",
			"admin":     "/api/admin",
		})
	}).Methods("GET")

	// User authentication
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", a.HandleRegister).Methods("POST")
	auth.HandleFunc("/verify-otp", a.HandleVerifyOTP).Methods("POST")
	auth.HandleFunc("/resend-otp", a.HandleResendOTP).Methods("POST")
	auth.HandleFunc("/login", a.HandleLogin).Methods("POST")
	auth.HandleFunc("/forgot-password", a.HandleForgotPassword(RoleUser)).Methods("POST")
	auth.HandleFunc("/reset-password", a.HandleResetPassword(RoleUser)).Methods("POST")
	auth.HandleFunc("/validate", a.HandleTokenValidate).Methods("GET")
	auth.Handle("/profile", a.BearerAuth(RoleUser)(http.HandlerFunc(a.HandleProfile))).Methods("GET")

	// Brand authentication and onboarding
	brand := api.PathPrefix("/brand-auth").Subrouter()
	brand.HandleFunc("/register", a.HandleBrandRegister).Methods("POST")
	brand.HandleFunc("/verify-otp", a.HandleBrandVerifyOTP).Methods("POST")
	brand.HandleFunc("/resend-otp", a.HandleBrandResendOTP).Methods("POST")
	brand.HandleFunc("/login", a.HandleBrandLogin).Methods("POST")
	brand.HandleFunc("/forgot-password", a.HandleForgotPassword(RoleBrand)).Methods("POST")
	brand.HandleFunc("/reset-password", a.HandleResetPassword(RoleBrand)).Methods("POST")
	brand.HandleFunc("/logo", a.HandleLogoUpload).Methods("POST")
	brand.Handle("/profile", a.BearerAuth(RoleBrand)(http.HandlerFunc(a.HandleBrandProfile))).Methods("GET")

	// Admin review surface
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/login", a.HandleAdminLogin).Methods("POST")
	adminOnly := a.BearerAuth(RoleAdmin)
	admin.Handle("/brands/pending", adminOnly(http.HandlerFunc(a.HandleListPendingBrands))).Methods("GET")
	admin.Handle("/brands/{id}/approve", adminOnly(http.HandlerFunc(a.HandleApproveBrand))).Methods("POST")
	admin.Handle("/brands/{id}/reject", adminOnly(http.HandlerFunc(a.HandleRejectBrand))).Methods("POST")

	return r
}
