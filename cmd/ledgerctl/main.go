// ledgerctl 是 ledger 的命令行入口
//
//	ledgerctl [flags] open     <account> <currency>
//	ledgerctl [flags] deposit  <account> <amount>
//	ledgerctl [flags] withdraw <account> <amount>
//	ledgerctl [flags] balance  <account>
//	ledgerctl [flags] settle   <account> <id>
//	ledgerctl [flags] cancel   <account> <id>
//	ledgerctl [flags] list     [--account=..] [--currency=..] [--status=..]
//
// 配置按 flag > 环境变量(LEDGER_*) > .env > config.<env>.yaml > config.yaml > 默认值 的顺序生效。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/asset"
	"github.com/ceyewan/ledger/breaker"
	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/config"
	"github.com/ceyewan/ledger/connector"
	"github.com/ceyewan/ledger/db"
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/trace"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type listFlags struct {
	account  string
	currency string
	statuses []string
	since    time.Duration
}

func run(ctx context.Context, args []string) int {
	// 配置类参数单独成组，只有这一组绑定到 viper
	cfgFlags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	cfgFlags.String("log.level", "info", "log level: debug|info|warn|error")
	cfgFlags.String("db.driver", "sqlite", "database driver: sqlite|mysql")
	cfgFlags.String("sqlite.path", "ledger.db", "sqlite database file")
	cfgFlags.String("mysql.dsn", "", "mysql dsn")
	cfgFlags.Duration("executor.lock_timeout", 5*time.Second, "max wait for an account lock")
	cfgFlags.Int("metrics.port", 0, "serve /metrics on this port, 0 disables the endpoint")

	var (
		configDir string
		lf        listFlags
	)
	fs := pflag.NewFlagSet("ledgerctl", pflag.ContinueOnError)
	fs.StringVar(&configDir, "config-dir", ".", "directory containing config.yaml")
	fs.StringVar(&lf.account, "account", "", "list: filter by account")
	fs.StringVar(&lf.currency, "currency", "", "list: filter by currency")
	fs.StringSliceVar(&lf.statuses, "status", nil, "list: filter by status (unprocessed|processed|cancelled)")
	fs.DurationVar(&lf.since, "since", 0, "list: only requests newer than this")
	fs.AddFlagSet(cfgFlags)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: ledgerctl [flags] <open|deposit|withdraw|balance|settle|cancel|list> [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	app, loader, err := config.LoadApp(ctx, &config.Config{Paths: []string{configDir}}, config.WithFlags(cfgFlags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger, err := clog.New(&app.Log, clog.WithNamespace("ledgerctl"), clog.WithTraceContext())
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		return 1
	}
	watchLogLevel(ctx, loader, logger)

	svc, cleanup, err := build(ctx, app, logger)
	if err != nil {
		logger.ErrorContext(ctx, "startup failed", clog.Error(err))
		return 1
	}
	defer cleanup()

	if err := dispatch(ctx, svc, fs.Arg(0), fs.Args()[1:], lf); err != nil {
		logger.ErrorContext(ctx, "command failed",
			clog.String("command", fs.Arg(0)),
			clog.ErrorWithCode(err, errorCode(err)))
		fmt.Fprintf(os.Stderr, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

// build 组装 connector -> db -> 锁管理器 -> 执行器 -> 资产用例
func build(ctx context.Context, app *config.AppConfig, logger clog.Logger) (*asset.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", clog.Error(err))
			}
		}
	}
	fail := func(err error) (*asset.Service, func(), error) {
		cleanup()
		return nil, nil, err
	}

	shutdownTrace, err := trace.Init(&app.Trace)
	if err != nil {
		return fail(xerrors.Wrap(err, "init tracing"))
	}
	closers = append(closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return shutdownTrace(shutdownCtx)
	})
	connOpts := []connector.Option{connector.WithLogger(logger)}
	if app.Trace.Enabled {
		connOpts = append(connOpts, connector.WithTracerProvider(otel.GetTracerProvider()))
	}

	meter, err := metrics.New(&app.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return fail(xerrors.Wrap(err, "create meter"))
	}
	closers = append(closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return meter.Shutdown(shutdownCtx)
	})

	var conn connector.SQLConnector
	switch app.DB.Driver {
	case "mysql":
		conn, err = connector.NewMySQL(&app.MySQL, connOpts...)
	default:
		conn, err = connector.NewSQLite(&app.SQLite, connOpts...)
	}
	if err != nil {
		return fail(xerrors.Wrap(err, "create connector"))
	}
	if err := conn.Connect(ctx); err != nil {
		return fail(xerrors.Wrap(err, "connect database"))
	}
	closers = append(closers, conn.Close)

	database, err := db.New(conn, &app.DB, db.WithLogger(logger))
	if err != nil {
		return fail(xerrors.Wrap(err, "create db"))
	}
	if app.DB.AutoMigrate {
		if err := database.Migrate(ctx, asset.Models()...); err != nil {
			return fail(xerrors.Wrap(err, "migrate schema"))
		}
	}

	locks, err := acctlock.New(&app.Lock, acctlock.WithLogger(logger), acctlock.WithMeter(meter))
	if err != nil {
		return fail(xerrors.Wrap(err, "create lock manager"))
	}
	var provider txexec.Provider = database
	if app.Breaker.Enabled {
		guarded, err := breaker.Guard(database, &app.Breaker, breaker.WithLogger(logger), breaker.WithMeter(meter))
		if err != nil {
			return fail(xerrors.Wrap(err, "create breaker"))
		}
		provider = guarded
	}
	exec, err := txexec.New(locks, provider, &app.Executor,
		txexec.WithLogger(logger), txexec.WithMeter(meter))
	if err != nil {
		return fail(xerrors.Wrap(err, "create executor"))
	}

	svc := asset.NewService(exec, asset.NewRepository(database), asset.WithLogger(logger))
	return svc, cleanup, nil
}

func dispatch(ctx context.Context, svc *asset.Service, cmd string, args []string, lf listFlags) error {
	need := func(n int) error {
		if len(args) != n {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "%s expects %d arguments, got %d", cmd, n, len(args))
		}
		return nil
	}

	switch cmd {
	case "open":
		if err := need(2); err != nil {
			return err
		}
		acc, err := svc.OpenAccount(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(acc)

	case "deposit":
		if err := need(2); err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		if err := svc.Deposit(ctx, args[0], amount); err != nil {
			return err
		}
		return printBalance(ctx, svc, args[0])

	case "withdraw":
		if err := need(2); err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		cio, err := svc.RequestWithdrawal(ctx, args[0], amount)
		if err != nil {
			return err
		}
		return printJSON(cio)

	case "balance":
		if err := need(1); err != nil {
			return err
		}
		return printBalance(ctx, svc, args[0])

	case "settle":
		if err := need(2); err != nil {
			return err
		}
		if err := svc.SettleCashInOut(ctx, args[0], args[1]); err != nil {
			return err
		}
		return printBalance(ctx, svc, args[0])

	case "cancel":
		if err := need(2); err != nil {
			return err
		}
		return svc.CancelCashInOut(ctx, args[0], args[1])

	case "list":
		filter := asset.FindCashInOut{AccountID: lf.account, Currency: lf.currency}
		for _, s := range lf.statuses {
			filter.Statuses = append(filter.Statuses, asset.Status(s))
		}
		if lf.since > 0 {
			filter.From = time.Now().UTC().Add(-lf.since)
		}
		items, err := svc.FindCashInOut(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(items)

	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown command %q", cmd)
	}
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, xerrors.Wrapf(asset.ErrInvalidAmount, "amount %q", s)
	}
	return amount, nil
}

func printBalance(ctx context.Context, svc *asset.Service, account string) error {
	balance, err := svc.Balance(ctx, account)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"account": account, "balance": balance})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errorCode(err error) string {
	if code := txexec.ErrorCode(err); code != "" {
		return code
	}
	return "unknown"
}

// watchLogLevel 配置文件中 log.level 变化时调整日志级别
func watchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		logger.Warn("watch log.level failed", clog.Error(err))
		return
	}
	go func() {
		for ev := range ch {
			level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
			if err != nil {
				logger.Warn("ignore invalid log level", clog.Any("value", ev.Value))
				continue
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("set log level failed", clog.Error(err))
			}
		}
	}()
}
