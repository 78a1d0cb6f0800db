package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/config"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/utils"
	"go.uber.org/zap"
)

// options 全局参数
type options struct {
	configPath string
	backendURL string
	frontURL   string
	token      string
	timeout    time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Banquiz 看板调试工具：查看对局快照、可走格子并生成二维码",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       Version,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径")
	fs.StringVar(&opts.backendURL, "backend", "", "覆盖 backend.base_url")
	fs.StringVar(&opts.frontURL, "front", "", "覆盖 backend.front_url")
	fs.StringVarP(&opts.token, "token", "t", os.Getenv("BANQUIZ_TOKEN"), "访问令牌 (env: BANQUIZ_TOKEN)")
	fs.DurationVar(&opts.timeout, "timeout", 15*time.Second, "单次请求超时")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "输出后端请求日志")

	cmd.AddCommand(
		newStateCmd(opts),
		newMovesCmd(opts),
		newResultsCmd(opts),
		newQRCodeCmd(opts),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("boardctl v{{.Version}}\n")

	return cmd
}

// loadConfig 读取配置并应用命令行覆盖
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if o.backendURL != "" {
		cfg.Backend.BaseURL = o.backendURL
	}
	if o.frontURL != "" {
		cfg.Backend.FrontURL = o.frontURL
	}
	if o.timeout > 0 {
		cfg.Backend.Timeout = o.timeout
	}
	return cfg, nil
}

// client 创建后端客户端与带令牌的上下文
func (o *options) client(cmd *cobra.Command) (*backend.Client, context.Context, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := zap.NewNop()
	if o.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			log = l
		}
	}

	c := backend.NewClient(&cfg.Backend,
		backend.WithExpiryLeeway(cfg.Security.ExpiryLeeway),
		backend.WithLogger(log))
	return c, backend.WithToken(cmd.Context(), o.token), nil
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state <game-url>",
		Short: "打印对局快照",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, err := opts.client(cmd)
			if err != nil {
				return err
			}
			snap, err := c.GetGameState(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newMovesCmd(opts *options) *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "moves <game-url>",
		Short: "列出棋子的可走格子（默认当前回合玩家）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, err := opts.client(cmd)
			if err != nil {
				return err
			}
			snap, err := c.GetGameState(ctx, args[0])
			if err != nil {
				return err
			}

			var cells []game.Position
			if player == "" {
				cells = game.SortedPositions(game.CurrentLegalMoves(snap))
			} else {
				id, err := strconv.ParseInt(player, 10, 64)
				if err != nil {
					return fmt.Errorf("无效的玩家ID: %s", player)
				}
				if _, ok := snap.PlayerByID(id); !ok {
					return fmt.Errorf("玩家不存在: %d", id)
				}
				cells = game.SortedPositions(game.LegalMoves(snap, id))
			}
			return printJSON(cmd.OutOrStdout(), cells)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "玩家ID")
	return cmd
}

func newResultsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "results <game-url>",
		Short: "打印对局结算",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, err := opts.client(cmd)
			if err != nil {
				return err
			}
			results, err := c.GetResults(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newQRCodeCmd(opts *options) *cobra.Command {
	var (
		output string
		size   int
	)

	cmd := &cobra.Command{
		Use:   "qrcode <game-url>",
		Short: "生成对局页二维码 PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			png, err := utils.GameQRCode(cfg.Backend.FrontURL, args[0], size)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(png)
				return err
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已写入 %s (%s)\n", output, utils.GameLink(cfg.Backend.FrontURL, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件（默认标准输出）")
	cmd.Flags().IntVarP(&size, "size", "s", utils.DefaultQRSize, "尺寸（像素）")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
