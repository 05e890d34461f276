package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/seed"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var typeCount int
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机医生, 2: 插入随机手术室, 3: 插入随机手术, 4: 插入随机准备时间矩阵, 5: 从 JSON 文件导入目录)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.IntVar(&typeCount, "types", 3, "手术类型的数量")
	flag.StringVar(&file, "file", "./internal/seed/data/catalog.json", "要导入的目录文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的医生数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			surgeon := utils.GenerateRandomSurgeon(cfg.Email.UserDomain)
			if err := repo.CreateSurgeon(surgeon); err != nil {
				slog.Error("无法插入医生", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入医生成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的手术室数量")
			return
		}

		rooms, err := repo.GetAllOperatingRooms()
		if err != nil {
			slog.Error("无法获取所有手术室", slog.String("error", err.Error()))
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			// 手术室名字唯一，编号接在已有手术室之后
			room := utils.GenerateRandomOperatingRoom(len(rooms) + i + 1)
			if err := repo.CreateOperatingRoom(room); err != nil {
				slog.Error("无法插入手术室", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入手术室成功", slog.Int("count", cnt))
	case 3:
		if n <= 0 || typeCount <= 0 {
			slog.Error("请输入合法的手术数量和手术类型数量")
			return
		}

		// 只把手术分配给在职的医生
		surgeons, err := repo.GetAllSurgeons()
		if err != nil {
			slog.Error("无法获取所有医生", slog.String("error", err.Error()))
			return
		}
		surgeonIDs := lo.FilterMap(surgeons, func(s *domain.Surgeon, _ int) (int64, bool) {
			return s.ID, s.IsActive
		})

		cnt := 0
		for i := 0; i < n; i++ {
			surgery := utils.GenerateRandomSurgery(typeCount, surgeonIDs)
			if err := repo.CreateSurgery(surgery); err != nil {
				slog.Error("无法插入手术", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入手术成功", slog.Int("count", cnt))
	case 4:
		if typeCount <= 0 {
			slog.Error("请输入合法的手术类型数量")
			return
		}

		matrix := utils.GenerateRandomSetupMatrix(typeCount)
		if err := repo.UpsertSetupTimes(matrix); err != nil {
			slog.Error("无法插入准备时间矩阵", slog.String("error", err.Error()))
			return
		}

		slog.Info("插入准备时间矩阵成功", slog.Int("count", len(matrix)))
	case 5:
		input, err := seed.LoadCatalogFile(file)
		if err != nil {
			slog.Error("无法读取目录文件", slog.String("error", err.Error()))
			return
		}

		if err := seed.ImportCatalog(repo, input); err != nil {
			slog.Error("导入目录失败", slog.String("error", err.Error()))
			return
		}
	default:
		slog.Error("指定的操作非法")
	}
}
