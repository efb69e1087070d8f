// Package archive 定义归档浏览的基础数据模型（Entry/Kind/Locator），以及逻辑路径与
// 上游 Locator 之间的双向映射。该包不做 I/O，所有函数均为纯函数。
package archive
