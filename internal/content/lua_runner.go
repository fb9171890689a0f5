package content

import (
	"errors"
	"fmt"
	"log/slog"

	lua "github.com/Shopify/go-lua"
)

// LuaScriptType はサンドボックス内で実行するスクリプト片のtype属性。
const LuaScriptType = "text/lua"

// デフォルトの実行制限
const (
	DefaultLuaMaxSource       = 16 * 1024
	DefaultLuaInstructionStep = 1000
	DefaultLuaMaxSteps        = 10000
)

// ErrLuaSourceTooLarge はスクリプト片が上限サイズを超えた場合のエラー。
var ErrLuaSourceTooLarge = errors.New("lua snippet too large")

// LuaRunner はページ断片に埋め込まれたLuaスクリプト片をサンドボックス内で実行する。
// スクリプトから参照できるのはbase/string/table/mathライブラリと
// 注入先の断片を操作するcontentテーブルのみ。
type LuaRunner struct {
	logger    *slog.Logger
	maxSource int
	maxSteps  int
}

// NewLuaRunner はLuaRunnerを生成する。
func NewLuaRunner(logger *slog.Logger) *LuaRunner {
	return &LuaRunner{
		logger:    logger,
		maxSource: DefaultLuaMaxSource,
		maxSteps:  DefaultLuaMaxSteps,
	}
}

// Run はスクリプト片を実行し、contentテーブル経由の変更を断片に反映する。
func (r *LuaRunner) Run(frag *fragment, locator, source string) error {
	if len(source) > r.maxSource {
		return ErrLuaSourceTooLarge
	}

	l := lua.NewState()
	openSandboxLibraries(l)
	r.registerContentAPI(l, frag, locator)

	// 命令数の上限を超えたら中断する
	steps := 0
	lua.SetDebugHook(l, func(state *lua.State, _ lua.Debug) {
		steps++
		if steps > r.maxSteps {
			lua.Errorf(state, "instruction limit exceeded")
		}
	}, lua.MaskCount, DefaultLuaInstructionStep)

	if err := lua.DoString(l, source); err != nil {
		return fmt.Errorf("lua snippet failed: %w", err)
	}
	return nil
}

// openSandboxLibraries は副作用のない標準ライブラリのみを開く。
func openSandboxLibraries(l *lua.State) {
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}

	// ファイルやチャンク読み込みの入口を塞ぐ
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}
}

func (r *LuaRunner) registerContentAPI(l *lua.State, frag *fragment, locator string) {
	api := []lua.RegistryFunction{
		{Name: "set_text", Function: func(state *lua.State) int {
			id := lua.CheckString(state, 1)
			text := lua.CheckString(state, 2)
			state.PushBoolean(frag.setText(id, text))
			return 1
		}},
		{Name: "append", Function: func(state *lua.State) int {
			frag.appendText(lua.CheckString(state, 1))
			return 0
		}},
		{Name: "log", Function: func(state *lua.State) int {
			msg := lua.CheckString(state, 1)
			r.logger.Info("コンテンツスクリプトのログ",
				slog.String("locator", locator),
				slog.String("message", msg),
			)
			return 0
		}},
	}
	l.NewTable()
	lua.SetFunctions(l, api, 0)
	l.SetGlobal("content")
}
