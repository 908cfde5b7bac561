package config

import (
	"errors"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Options struct {
	// 约定：{Paths}/{Name}.yaml
	Name  string
	Paths []string
	// Defaults 在文件和环境变量之前生效
	Defaults map[string]interface{}
	// Watch 为 true 时监听文件变更，变更后回调 OnChange
	Watch    bool
	OnChange func(v *viper.Viper)
}

// Load 读取配置到 out。配置文件不存在不算错误（只用默认值 + 环境变量）
//
// 环境变量覆盖，例如 name=market-data 时：
//
//	MARKET_DATA_BROADCAST_REDIS_HOST 覆盖 broadcast.redis.host
func Load(opt Options, out interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(opt.Name)
	v.SetConfigType("yaml")
	paths := opt.Paths
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	for k, val := range opt.Defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(opt.Name, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
		log.Printf("[%s] config file not found, using defaults and env", opt.Name)
	}

	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	if !fileLoaded {
		return v, nil
	}
	log.Printf("[%s] config loaded from %s", opt.Name, v.ConfigFileUsed())

	if opt.Watch {
		// 只通知调用方，不重新 Unmarshal 到 out：运行中的组件持有的是启动时的值
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("[%s] config file changed: %s (%s)", opt.Name, e.Name, e.Op)
			if opt.OnChange != nil {
				opt.OnChange(v)
			}
		})
		v.WatchConfig()
	}
	return v, nil
}
