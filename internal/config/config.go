package config

import (
	"errors"
	"io/fs"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Database    struct {
		DSN                string `env:"DSN"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"hospital.example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host           string `env:"HOST" envDefault:"localhost"`
		Port           int    `env:"PORT" envDefault:"6379"`
		Password       string `env:"PASSWORD"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		LockExpiration int    `env:"LOCK_EXPIRATION" envDefault:"600"` // 排班锁的过期时间，单位为秒
	} `envPrefix:"REDIS_"`
	Metrics struct {
		PushgatewayURL string `env:"PUSHGATEWAY_URL"` // 为空时不推送指标
		Job            string `env:"JOB" envDefault:"or_scheduler"`
	} `envPrefix:"METRICS_"`
	Search struct {
		MaxIterations       int32   `env:"MAX_ITERATIONS" envDefault:"500"`
		TabuTenure          int32   `env:"TABU_TENURE" envDefault:"10"`
		MinTenure           int32   `env:"MIN_TENURE" envDefault:"0"`
		MaxTenure           int32   `env:"MAX_TENURE" envDefault:"0"`
		FrequencyThreshold  int32   `env:"FREQUENCY_THRESHOLD" envDefault:"0"`
		AdaptiveTenure      bool    `env:"ADAPTIVE_TENURE" envDefault:"false"`
		NoImprovementRatio  float64 `env:"NO_IMPROVEMENT_RATIO" envDefault:"0.3"`
		TimeLimit           int     `env:"TIME_LIMIT" envDefault:"60"` // 单位为秒，0 表示不限制
		Aspiration          string  `env:"ASPIRATION" envDefault:"global_best"`
		AspirationComponent string  `env:"ASPIRATION_COMPONENT"`
		SampleSize          int32   `env:"SAMPLE_SIZE" envDefault:"8"`
		Workers             int32   `env:"WORKERS" envDefault:"0"` // 0 表示使用 CPU 核数
		Seed                int64   `env:"SEED" envDefault:"0"`
		DayEnd              string  `env:"DAY_END"`
		Intensification     struct {
			Enabled      bool  `env:"ENABLED" envDefault:"false"`
			Every        int32 `env:"EVERY" envDefault:"1"`
			ClearTabu    bool  `env:"CLEAR_TABU" envDefault:"false"`
			PerturbSteps int32 `env:"PERTURB_STEPS" envDefault:"0"`
		} `envPrefix:"INTENSIFICATION_"`
		Diversification struct {
			Strategy       string  `env:"STRATEGY" envDefault:"restart"`
			Ratio          float64 `env:"RATIO" envDefault:"0.1"`
			ClearTabu      bool    `env:"CLEAR_TABU" envDefault:"true"`
			TenureIncrease int32   `env:"TENURE_INCREASE" envDefault:"5"`
		} `envPrefix:"DIVERSIFICATION_"`
		Weights struct {
			Utilization     float64 `env:"UTILIZATION" envDefault:"0.20"`
			SetupPenalty    float64 `env:"SETUP_PENALTY" envDefault:"-0.20"`
			Preference      float64 `env:"PREFERENCE" envDefault:"0.15"`
			WorkloadBalance float64 `env:"WORKLOAD_BALANCE" envDefault:"0.15"`
			Urgency         float64 `env:"URGENCY" envDefault:"0.10"`
			WaitTime        float64 `env:"WAIT_TIME" envDefault:"0"`
			Overtime        float64 `env:"OVERTIME" envDefault:"0"`
		} `envPrefix:"WEIGHT_"`
	} `envPrefix:"SEARCH_"`
}

// LoadConfig 先读取当前目录下的 .env 文件（如果存在），再从环境变量解析配置
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok && len(aggErr.Errors) > 0 {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// SearchParameters 把环境变量中的搜索配置转换为禁忌搜索参数
func (cfg *Config) SearchParameters() *scheduler.Parameters {
	s := cfg.Search

	p := &scheduler.Parameters{
		MaxIterations:       s.MaxIterations,
		TabuTenure:          s.TabuTenure,
		MinTenure:           s.MinTenure,
		MaxTenure:           s.MaxTenure,
		FrequencyThreshold:  s.FrequencyThreshold,
		AdaptiveTenure:      s.AdaptiveTenure,
		NoImprovementRatio:  s.NoImprovementRatio,
		TimeLimit:           time.Duration(s.TimeLimit) * time.Second,
		Aspiration:          scheduler.AspirationCriterion(s.Aspiration),
		AspirationComponent: s.AspirationComponent,
		SampleSize:          s.SampleSize,
		Workers:             s.Workers,
		Seed:                s.Seed,
		DayEnd:              s.DayEnd,
		Intensification: scheduler.IntensificationParameters{
			Enabled:      s.Intensification.Enabled,
			Every:        s.Intensification.Every,
			ClearTabu:    s.Intensification.ClearTabu,
			PerturbSteps: s.Intensification.PerturbSteps,
		},
		Diversification: scheduler.DiversificationParameters{
			Strategy:       scheduler.DiversificationStrategy(s.Diversification.Strategy),
			Ratio:          s.Diversification.Ratio,
			ClearTabu:      s.Diversification.ClearTabu,
			TenureIncrease: s.Diversification.TenureIncrease,
		},
		Weights: scheduler.Weights{
			Utilization:     s.Weights.Utilization,
			SetupPenalty:    s.Weights.SetupPenalty,
			Preference:      s.Weights.Preference,
			WorkloadBalance: s.Weights.WorkloadBalance,
			Urgency:         s.Weights.Urgency,
			WaitTime:        s.Weights.WaitTime,
			Overtime:        s.Weights.Overtime,
		},
	}
	if p.Workers <= 0 {
		p.Workers = int32(runtime.NumCPU())
	}

	return p
}
