// Package contents 将逻辑路径解析为目录列表：路径归一化、缓存查找与回源三者在此汇合。
// HTTP 层只依赖 Resolver，不直接接触 cache 或 source。
package contents
