// Package config 提供 StreamFlow 的配置管理功能。
//
// 包含引擎、服务器、Redis 缓存、日志与遥测各节的配置结构，
// 支持从 YAML 文件和环境变量加载（默认值 → 文件 → 环境变量），
// 并内置吞吐 / 延迟 / 内存三种引擎调优预设。
package config
