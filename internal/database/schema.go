package database

// schema is the single source of truth for the quantdesk database layout.
// Trades and cash flows are append-only; portfolio_snapshots and portfolio
// rows are replaced on conflict by their composite primary keys.
const schema = `
CREATE TABLE IF NOT EXISTS securities (
    code TEXT PRIMARY KEY,
    symbol TEXT,
    name TEXT,
    industry TEXT,
    list_date TEXT,
    region TEXT
);

CREATE TABLE IF NOT EXISTS watchlist (
    code TEXT PRIMARY KEY,
    name TEXT,
    add_date TEXT,
    in_pool INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_price (
    code TEXT,
    date TEXT,
    open REAL,
    high REAL,
    low REAL,
    close REAL,
    volume REAL,
    turnover REAL,
    PRIMARY KEY (code, date)
);

CREATE TABLE IF NOT EXISTS index_daily_price (
    code TEXT,
    date TEXT,
    open REAL,
    high REAL,
    low REAL,
    close REAL,
    volume REAL,
    turnover REAL,
    PRIMARY KEY (code, date)
);

CREATE TABLE IF NOT EXISTS portfolio (
    portfolio_name TEXT,
    code TEXT,
    qty REAL,
    cost REAL,
    target_price REAL,
    PRIMARY KEY (portfolio_name, code)
);

CREATE TABLE IF NOT EXISTS trades (
    trade_id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT,
    portfolio_name TEXT,
    code TEXT,
    side TEXT,
    price REAL,
    qty REAL,
    fee REAL
);

CREATE TABLE IF NOT EXISTS cash_flows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_name TEXT,
    date TEXT,
    amount REAL,
    note TEXT
);

CREATE TABLE IF NOT EXISTS signals (
    strategy TEXT,
    code TEXT,
    date TEXT,
    signal_type TEXT,
    PRIMARY KEY (strategy, code, date, signal_type)
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
    portfolio_name TEXT,
    date TEXT,
    total_value REAL,
    cash REAL,
    investment_value REAL,
    PRIMARY KEY (portfolio_name, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_price ON daily_price(code, date);
CREATE INDEX IF NOT EXISTS idx_index_daily_price ON index_daily_price(code, date);
CREATE INDEX IF NOT EXISTS idx_trades_portfolio ON trades(portfolio_name, date);
CREATE INDEX IF NOT EXISTS idx_cash_flows ON cash_flows(portfolio_name, date);
CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots ON portfolio_snapshots(portfolio_name, date);
`
