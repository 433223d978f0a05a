package sqlinline

const QEnsureUnlockSchema = `--sql 8be9b62d-8b24-4567-8227-a481b9738a61
create table if not exists unlock_sets (
  owner text not null,
  storage_key text not null,
  ids jsonb not null default '[]'::jsonb,
  updated_at timestamptz not null default now(),
  primary key (owner, storage_key)
);
`

const QSelectUnlockSet = `--sql 5b4d50df-5c22-4595-b905-074a7e29dab6
select ids
from unlock_sets
where owner = $1::text
  and storage_key = $2::text
limit 1;
`

const QUpsertUnlockSet = `--sql 071fc539-72a9-4539-a27d-c2cf610f00ce
insert into unlock_sets (owner, storage_key, ids, updated_at)
values ($1::text, $2::text, $3::jsonb, now())
on conflict (owner, storage_key) do update set
  ids = excluded.ids,
  updated_at = now();
`
