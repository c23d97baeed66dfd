package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App      AppConfig
	DB       DBConfig
	HTTP     HTTPConfig
	DGI      DGIConfig
	SMTP     SMTPConfig
	Redis    RedisConfig
	Workflow WorkflowConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// DGIConfig configuración del PAC para factura electrónica DGI (Panamá).
// Sin valores embebidos en código: todo llega por entorno al construir el cliente.
type DGIConfig struct {
	BaseURL     string // Endpoint del PAC (ej. https://emision.pac.example.com)
	APIKey      string // Credencial del emisor ante el PAC
	Environment int    // 1 = Producción, 2 = Pruebas
	Timeout     time.Duration
}

// SMTPConfig configuración del proveedor de correo.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AlertTo  string // Destino de las alertas internas de error
}

// RedisConfig transporte opcional de eventos entre procesos.
// Con Addr vacío los eventos se despachan en memoria dentro del proceso.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string // Nombre de la lista de eventos
}

// WorkflowConfig política de reintentos, concurrencia y barridos de mantenimiento.
type WorkflowConfig struct {
	InvoiceMaxAttempts int           // Reintentos del workflow de factura (presupuesto fijo)
	EmailMaxAttempts   int           // Reintentos del workflow de correo
	RetryBackoff       time.Duration // Base del backoff exponencial entre intentos
	EmitterParallel    int64         // Instancias simultáneas por emisor (límite PAC)
	EmailParallel      int64         // Techo global de envíos de correo simultáneos
	StuckInterval      time.Duration // Frecuencia del barrido de facturas atascadas
	StuckThreshold     time.Duration // Antigüedad mínima de updated_at para considerar atascada
	EmailRetryInterval time.Duration // Frecuencia del barrido de correos fallidos
	SweepLimit         int           // Máximo de filas re-disparadas por barrido
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo .env).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, DGI_BASE_URL, SMTP_HOST, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "facturacion-dgi"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "facturacion_dgi"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		DGI: DGIConfig{
			BaseURL:     getString(v, "DGI_BASE_URL", ""),
			APIKey:      getString(v, "DGI_API_KEY", ""),
			Environment: getInt(v, "DGI_ENVIRONMENT", 2),
			Timeout:     getDuration(v, "DGI_TIMEOUT", 60*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getString(v, "SMTP_HOST", ""),
			Port:     getInt(v, "SMTP_PORT", 587),
			Username: getString(v, "SMTP_USERNAME", ""),
			Password: getString(v, "SMTP_PASSWORD", ""),
			From:     getString(v, "SMTP_FROM", "facturacion@vialsa.com.pa"),
			AlertTo:  getString(v, "SMTP_ALERT_TO", "soporte@vialsa.com.pa"),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			Queue:    getString(v, "REDIS_QUEUE", "fe:eventos"),
		},
		Workflow: WorkflowConfig{
			InvoiceMaxAttempts: getInt(v, "WF_INVOICE_MAX_ATTEMPTS", 3),
			EmailMaxAttempts:   getInt(v, "WF_EMAIL_MAX_ATTEMPTS", 5),
			RetryBackoff:       getDuration(v, "WF_RETRY_BACKOFF", 2*time.Second),
			EmitterParallel:    int64(getInt(v, "WF_EMITTER_PARALLEL", 2)),
			EmailParallel:      int64(getInt(v, "WF_EMAIL_PARALLEL", 10)),
			StuckInterval:      getDuration(v, "WF_STUCK_INTERVAL", 15*time.Minute),
			StuckThreshold:     getDuration(v, "WF_STUCK_THRESHOLD", 10*time.Minute),
			EmailRetryInterval: getDuration(v, "WF_EMAIL_RETRY_INTERVAL", 2*time.Hour),
			SweepLimit:         getInt(v, "WF_SWEEP_LIMIT", 100),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		if d := v.GetDuration(key); d > 0 {
			return d
		}
	}
	return def
}
