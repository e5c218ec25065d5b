// Copyright 2026 StreamFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 StreamFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertToolCallsEqual / AssertErrorCode
  - 异步辅助: AssertEventuallyTrue 超时轮询等待条件满足，
    WaitClosed 等待通道关闭

# 子包

  - testutil/mocks: Mock 实现，包括 MockFormatter（格式化器）与
    MemorySink（终态结果存储），均支持 Builder 模式与错误注入
  - testutil/fixtures: 测试数据工厂，提供预置 StreamContext、
    OpenAI 风格的块载荷、工具调用增量与 SSE 帧样例

# 使用示例

	ctx := testutil.TestContext(t)
	f := mocks.NewMockFormatter().WithEcho()
	res, _ := f.Process(ctx, []byte("hello"), false, fixtures.SimpleStreamContext())
	testutil.AssertToolCallsEqual(t, nil, res.ToolCalls)
*/
package testutil
