package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/engine"
	"github.com/iWorld-y/opinion_radar/internal/logger"
	"github.com/iWorld-y/opinion_radar/internal/server"
	"github.com/iWorld-y/opinion_radar/internal/storage"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "opinion_radar"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 配置文件可缺省，密钥通过 DASHSCOPE_API_KEY / TAVILY_API_KEY 注入
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		panic(err)
	}
	logger.Log.Info("启动舆情分析服务...")

	// 数据库是可选的：连不上只丢历史记录功能，不影响分析
	var store *storage.Storage
	if cfg.DB.Host != "" {
		s, err := storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 历史记录功能不可用。", err)
		} else {
			store = s
			defer store.Close()
			logger.Log.Info("已成功连接到数据库")
		}
	} else {
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
	}

	eng, err := engine.NewEngine(cfg, store)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// nil 指针不能直接塞进接口，否则 handler 里的 nil 判断会失效
	var hist server.History
	if store != nil {
		hist = store
	}
	srv := server.NewHTTPServer(&cfg.Server, eng, hist)

	klogger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(klogger),
		kratos.Server(srv),
	)

	logger.Log.Infof("监听地址: %s", cfg.Server.Addr)
	if err := app.Run(); err != nil {
		logger.Log.Fatalf("服务退出: %v", err)
	}
}
