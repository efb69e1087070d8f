// Package source 提供目录列举的上游来源。所有实现都满足 Source 接口，并在 init() 中
// 通过 Register 注册到类型表，由 New 根据配置的 Source.Type 在启动时选定：
//
//   - github：调用托管仓库的 contents API，带鉴权头，可选 http/socks5 出口代理，
//     对瞬时错误做有限次数的指数退避重试；
//   - local：枚举 Root 下的目录树，拒绝越出 Root 的路径，可选 fsnotify 监听以失效缓存。
package source
