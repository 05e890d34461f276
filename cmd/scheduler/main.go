package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/notify"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/runlock"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// lockKey 同一个排班窗口同时只允许一个任务运行
func lockKey(windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("or_scheduler:run:%s:%s", windowStart.Format(time.DateOnly), windowEnd.Format(time.DateOnly))
}

func main() {
	var start string
	var days int
	var file string
	var out string
	var verbose bool

	flag.StringVar(&start, "start", time.Now().AddDate(0, 0, 1).Format(time.DateOnly), "排班窗口的起始日期，格式为 2006-01-02")
	flag.IntVar(&days, "days", 1, "排班窗口包含的天数")
	flag.StringVar(&file, "file", "", "从 JSON 文件读取目录并离线排班，不读写数据库")
	flag.StringVar(&out, "out", "", "排班结果的输出文件，为空时输出到标准输出")
	flag.BoolVar(&verbose, "v", false, "输出每次迭代的调试日志")
	flag.Parse()

	/**********************************************
	 * 创建 logger
	 **********************************************/
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", slog.String("error", err.Error()))
		return
	}

	windowStart, err := time.ParseInLocation(time.DateOnly, start, time.Local)
	if err != nil {
		logger.Error("起始日期格式错误", slog.String("start", start))
		return
	}
	if days <= 0 {
		logger.Error("请输入合法的天数", slog.Int("days", days))
		return
	}
	windowEnd := windowStart.AddDate(0, 0, days)

	// 收到 CTRL+C 时提前结束搜索，仍然返回目前为止的最优解
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	/**********************************************
	 * 离线模式：从文件读取目录
	 **********************************************/
	if file != "" {
		input, err := seed.LoadCatalogFile(file)
		if err != nil {
			logger.Error("无法读取目录文件", slog.String("error", err.Error()))
			return
		}

		run, _, err := schedule(ctx, cfg, logger, input, windowStart, windowEnd)
		if err != nil {
			logger.Error("排班失败", slog.String("error", err.Error()))
			return
		}
		if err := writeResult(run, out); err != nil {
			logger.Error("无法输出排班结果", slog.String("error", err.Error()))
		}
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	if cfg.Database.DSN == "" {
		logger.Error("没有指定 -file 时必须配置 DATABASE_DSN")
		return
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", slog.String("error", err.Error()))
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis 并获取排班锁
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	locker := runlock.NewLocker(rdb, lockKey(windowStart, windowEnd), time.Duration(cfg.Redis.LockExpiration)*time.Second)
	lock, err := locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			logger.Warn("已有排班任务正在运行，本次不执行")
		} else {
			logger.Error("无法获取排班锁", slog.String("error", err.Error()))
		}
		return
	}
	defer func() {
		// ctx 可能已经被取消，释放锁使用新的上下文
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
		defer cancel()
		if released, err := lock.Release(releaseCtx); err != nil || !released {
			logger.Warn("排班锁释放失败或已过期", slog.Bool("released", released))
		}
	}()

	/**********************************************
	 * 读取目录并排班
	 **********************************************/
	input, err := repo.LoadCatalog()
	if err != nil {
		logger.Error("无法读取目录", slog.String("error", err.Error()))
		return
	}

	run, catalog, err := schedule(ctx, cfg, logger, input, windowStart, windowEnd)
	if err != nil {
		logger.Error("排班失败", slog.String("error", err.Error()))
		return
	}

	if err := repo.InsertScheduleRun(run); err != nil {
		logger.Error("无法保存排班结果", slog.String("error", err.Error()))
		return
	}
	logger.Info("排班结果已保存", slog.String("run_id", run.ID))

	if out != "" {
		if err := writeResult(run, out); err != nil {
			logger.Error("无法输出排班结果", slog.String("error", err.Error()))
		}
	}

	/**********************************************
	 * 通过 rabbitmq 通知医生
	 **********************************************/
	if cfg.RabbitMQ.DSN == "" {
		logger.Info("没有配置 RABBITMQ_DSN，跳过排班通知")
		return
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	if _, err := ch.QueueDeclare(cfg.RabbitMQ.Queue, true, false, false, false, nil); err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	notifier := notify.NewNotifier(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second, logger)
	n, err := notifier.Publish(context.Background(), run, catalog)
	if err != nil {
		logger.Error("发布排班通知失败", slog.String("error", err.Error()), slog.Int("published", n))
		return
	}
	logger.Info("排班通知已发布", slog.Int("count", n))
}

// schedule 执行禁忌搜索，配置了 Pushgateway 时推送搜索指标
func schedule(ctx context.Context, cfg *config.Config, logger *slog.Logger, input *scheduler.CatalogInput, windowStart, windowEnd time.Time) (*domain.ScheduleRun, *scheduler.Catalog, error) {
	searchMetrics := metrics.NewSearchMetrics()

	s, err := scheduler.New(cfg.SearchParameters(), input, windowStart, windowEnd,
		scheduler.WithLogger(logger),
		scheduler.WithObserver(searchMetrics),
	)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.Schedule(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("排班完成",
		slog.Int("assignments", len(result.Best)),
		slog.Float64("score", result.BestScore),
		slog.Float64("initialScore", result.InitialScore),
		slog.String("stopReason", string(result.StopReason)),
	)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := searchMetrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("无法推送搜索指标", slog.String("error", err.Error()))
		}
	}

	return result.ToScheduleRun(windowStart, windowEnd), s.Catalog(), nil
}

func writeResult(run *domain.ScheduleRun, path string) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(run)
}
